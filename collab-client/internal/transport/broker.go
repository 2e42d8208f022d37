// Package transport keeps a participant attached to the room topics of a
// message broker.
package transport

import (
	"context"
	"errors"
)

// ErrConnClosed is returned by operations on a closed connection.
var ErrConnClosed = errors.New("transport: connection closed")

// Broker opens connections to a message broker.
type Broker interface {
	// Dial returns once the broker handshake has completed.
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one live broker connection.
type Conn interface {
	// Subscribe delivers every payload published to topic to handler, on a
	// goroutine owned by the connection.
	Subscribe(topic string, handler func(payload []byte)) (Subscription, error)
	Publish(ctx context.Context, topic string, payload []byte) error
	// Done is closed when the connection is lost or closed.
	Done() <-chan struct{}
	Close() error
}

// Subscription is an active topic subscription.
type Subscription interface {
	Unsubscribe() error
}

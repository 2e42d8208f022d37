package pubsub

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by every operation on a closed PubSub.
	ErrClosed = errors.New("pubsub: closed")
	// ErrInvalidTopic is returned when a topic does not follow the room naming scheme.
	ErrInvalidTopic = errors.New("pubsub: invalid topic")
)

// Message is a raw payload received on a topic. For pattern subscriptions
// Topic is the concrete topic the payload was published to.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher publishes payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber delivers payloads published to a topic or pattern. The returned
// channel is closed when the subscription ends. Slow readers lose messages
// once the per-subscription buffer is full.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *Message, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Message, error)
	Unsubscribe(ctx context.Context, topic string) error
}

// PubSub combines Publisher and Subscriber with connection health.
type PubSub interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
	Close() error
}

const subscriptionBuffer = 100

package service

import (
	"context"

	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
)

// RelayService routes client frames to the broker and broker messages back
// to subscribed clients.
type RelayService interface {
	// Start subscribes to every room topic on the broker.
	Start(ctx context.Context) error
	// Done is closed once the fan-out loop has exited after ctx is cancelled.
	Done() <-chan struct{}

	HandleConnect(client *hub.Client)
	HandleFrame(ctx context.Context, client *hub.Client, data []byte)
}

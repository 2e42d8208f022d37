package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

// PubSubFactory opens a new pub/sub client for each connection attempt. It
// must give up when ctx is done.
type PubSubFactory func(ctx context.Context) (pubsub.PubSub, error)

// PubSubBroker talks to Redis, Kafka or the in-process bus directly through
// pkg/pubsub, without a relay. Topics are used verbatim. A connection counts
// as lost when a periodic Ping fails.
type PubSubBroker struct {
	factory        PubSubFactory
	healthInterval time.Duration
}

// NewPubSubBroker creates a broker that pings every healthInterval.
func NewPubSubBroker(factory PubSubFactory, healthInterval time.Duration) *PubSubBroker {
	if healthInterval <= 0 {
		healthInterval = 5 * time.Second
	}
	return &PubSubBroker{factory: factory, healthInterval: healthInterval}
}

// Dial opens a client and treats a successful Ping as the handshake.
func (b *PubSubBroker) Dial(ctx context.Context) (Conn, error) {
	ps, err := b.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open pubsub: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, b.healthInterval)
	defer cancel()
	if err := ps.Ping(pingCtx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("pubsub handshake: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c := &pubsubConn{
		ps:       ps,
		ctx:      connCtx,
		cancel:   connCancel,
		done:     make(chan struct{}),
		interval: b.healthInterval,
	}
	go c.monitor()

	return c, nil
}

type pubsubConn struct {
	ps       pubsub.PubSub
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func (c *pubsubConn) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	ch, err := c.ps.Subscribe(c.ctx, topic)
	if err != nil {
		return nil, err
	}

	sub := &pubsubSubscription{conn: c, topic: topic}
	go func() {
		for msg := range ch {
			handler(msg.Payload)
		}
		// The channel only closes on its own when the driver gave up.
		if !sub.stopped.Load() && c.ctx.Err() == nil {
			l := pkglog.Component("pubsub-broker")
			l.Warn().Str(pkglog.FieldTopic, topic).Msg("subscription ended unexpectedly")
			c.lost()
		}
	}()
	return sub, nil
}

func (c *pubsubConn) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	return c.ps.Publish(ctx, topic, payload)
}

func (c *pubsubConn) Done() <-chan struct{} {
	return c.done
}

func (c *pubsubConn) Close() error {
	c.lost()
	return nil
}

func (c *pubsubConn) lost() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		if err := c.ps.Close(); err != nil {
			l := pkglog.Component("pubsub-broker")
			l.Debug().Err(err).Msg("pubsub close failed")
		}
	})
}

func (c *pubsubConn) monitor() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, c.interval)
			err := c.ps.Ping(ctx)
			cancel()
			if err != nil && c.ctx.Err() == nil {
				l := pkglog.Component("pubsub-broker")
				l.Warn().Err(err).Msg("broker ping failed")
				c.lost()
				return
			}
		}
	}
}

type pubsubSubscription struct {
	conn    *pubsubConn
	topic   string
	stopped atomic.Bool
}

func (s *pubsubSubscription) Unsubscribe() error {
	s.stopped.Store(true)
	return s.conn.ps.Unsubscribe(context.Background(), s.topic)
}

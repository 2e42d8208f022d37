package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// RedisPubSub implements PubSub on Redis PUBLISH/SUBSCRIBE. Topics are used
// verbatim as channel names, so PSUBSCRIBE globs like room.*.code work as is.
type RedisPubSub struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
	closed        bool
}

// NewRedisPubSub connects to Redis and verifies the connection within ctx.
func NewRedisPubSub(ctx context.Context, cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPubSub{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
	}, nil
}

// Publish publishes payload to topic.
func (r *RedisPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return r.client.Publish(ctx, topic, payload).Err()
}

// Subscribe subscribes to a single topic and waits for the server to confirm.
func (r *RedisPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	return r.subscribe(ctx, topic, func() *redis.PubSub { return r.client.Subscribe(ctx, topic) })
}

// SubscribePattern subscribes to every topic matching a glob pattern.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Message, error) {
	return r.subscribe(ctx, pattern, func() *redis.PubSub { return r.client.PSubscribe(ctx, pattern) })
}

func (r *RedisPubSub) subscribe(ctx context.Context, key string, open func() *redis.PubSub) (<-chan *Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if existing, ok := r.subscriptions[key]; ok {
		existing.Close()
		delete(r.subscriptions, key)
	}

	ps := open()
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}
	r.subscriptions[key] = ps

	msgCh := make(chan *Message, subscriptionBuffer)
	go r.processMessages(ctx, ps, msgCh)

	return msgCh, nil
}

// Unsubscribe ends the subscription registered under topic (or pattern).
func (r *RedisPubSub) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ps, ok := r.subscriptions[topic]; ok {
		delete(r.subscriptions, topic)
		if err := ps.Close(); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks the connection to Redis.
func (r *RedisPubSub) Ping(ctx context.Context) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return r.client.Ping(ctx).Err()
}

// Close closes all subscriptions and the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for key, ps := range r.subscriptions {
		ps.Close()
		delete(r.subscriptions, key)
	}

	return r.client.Close()
}

// Client returns the underlying Redis client.
func (r *RedisPubSub) Client() *redis.Client {
	return r.client
}

func (r *RedisPubSub) processMessages(ctx context.Context, ps *redis.PubSub, msgCh chan<- *Message) {
	defer close(msgCh)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			select {
			case msgCh <- &Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			default:
				l := pkglog.L()
				l.Warn().Str(pkglog.FieldTopic, msg.Channel).Msg("subscriber buffer full, message dropped")
			}
		}
	}
}

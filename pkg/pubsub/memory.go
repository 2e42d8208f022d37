package pubsub

import (
	"context"
	"path"
	"sync"
)

// DefaultBus backs the "memory" driver.
var DefaultBus = NewMemoryBus()

// MemoryBus is an in-process broker. Every MemoryPubSub attached to the same
// bus sees the others' messages, which makes it a stand-in for Redis or
// Kafka in single-process deployments and tests.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
	err  error
}

type memorySub struct {
	key     string
	pattern bool
	ch      chan *Message
	stop    func() bool
}

func (s *memorySub) matches(topic string) bool {
	if !s.pattern {
		return s.key == topic
	}
	ok, err := path.Match(s.key, topic)
	return err == nil && ok
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

// Fail makes Ping and Publish on every attached client return err until
// Fail(nil) is called. Used to simulate a broker outage.
func (b *MemoryBus) Fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *MemoryBus) health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

func (b *MemoryBus) publish(topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.err != nil {
		return b.err
	}
	for s := range b.subs {
		if !s.matches(topic) {
			continue
		}
		msg := &Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) add(s *memorySub) {
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
}

func (b *MemoryBus) remove(s *memorySub) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
}

// MemoryPubSub is a client of a MemoryBus.
type MemoryPubSub struct {
	bus           *MemoryBus
	mu            sync.Mutex
	subscriptions map[string]*memorySub
	closed        bool
}

// NewMemoryPubSub attaches a new client to bus.
func NewMemoryPubSub(bus *MemoryBus) *MemoryPubSub {
	return &MemoryPubSub{
		bus:           bus,
		subscriptions: make(map[string]*memorySub),
	}
}

// Publish delivers payload to every matching subscription on the bus.
func (m *MemoryPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return m.bus.publish(topic, payload)
}

// Subscribe subscribes to a single topic.
func (m *MemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	return m.subscribe(ctx, topic, false)
}

// SubscribePattern subscribes using path.Match globs (room.*.code).
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Message, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.subscribe(ctx, pattern, true)
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) (<-chan *Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := m.bus.health(); err != nil {
		return nil, err
	}
	if existing, ok := m.subscriptions[key]; ok {
		existing.stop()
		m.bus.remove(existing)
	}

	s := &memorySub{key: key, pattern: pattern, ch: make(chan *Message, subscriptionBuffer)}
	m.subscriptions[key] = s
	m.bus.add(s)

	s.stop = context.AfterFunc(ctx, func() {
		m.mu.Lock()
		if m.subscriptions[key] == s {
			delete(m.subscriptions, key)
		}
		m.mu.Unlock()
		m.bus.remove(s)
	})

	return s.ch, nil
}

// Unsubscribe removes the subscription registered under topic (or pattern).
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, topic string) error {
	m.mu.Lock()
	s, ok := m.subscriptions[topic]
	delete(m.subscriptions, topic)
	m.mu.Unlock()

	if ok {
		s.stop()
		m.bus.remove(s)
	}
	return nil
}

// Ping reports the bus health.
func (m *MemoryPubSub) Ping(ctx context.Context) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return m.bus.health()
}

// Close removes all of this client's subscriptions.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subscriptions
	m.subscriptions = make(map[string]*memorySub)
	m.mu.Unlock()

	for _, s := range subs {
		s.stop()
		m.bus.remove(s)
	}
	return nil
}

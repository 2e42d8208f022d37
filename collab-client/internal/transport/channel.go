package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config tunes a Channel. QueueSize bounds the outbound messages waiting
// for the broker; further publishes are dropped.
type Config struct {
	ReconnectDelay time.Duration
	PublishTimeout time.Duration
	QueueSize      int
}

// DefaultConfig returns the fixed 3s reconnect delay.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 3 * time.Second,
		PublishTimeout: 2 * time.Second,
		QueueSize:      256,
	}
}

type outbound struct {
	topic   string
	payload []byte
}

// Handlers receive inbound room traffic. Messages sent by the local
// participant, messages for other rooms and malformed payloads never reach
// them. Handlers run on transport goroutines.
type Handlers struct {
	OnCode   func(domain.CodeChangeMessage)
	OnCursor func(domain.CursorUpdateMessage)
}

// Channel owns the single broker connection of a session. It subscribes the
// room's code and cursor topics on every successful handshake and keeps
// reconnecting with a fixed delay until Disconnect. Outbound messages pass
// through a bounded queue drained on a goroutine of their own, so a slow
// broker never stalls the caller.
type Channel struct {
	broker   Broker
	cfg      Config
	handlers Handlers

	mu            sync.Mutex
	state         State
	roomID        string
	participantID string
	conn          Conn
	subs          []Subscription
	outbox        chan outbound
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewChannel creates a disconnected channel.
func NewChannel(broker Broker, cfg Config, handlers Handlers) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Channel{
		broker:   broker,
		cfg:      cfg,
		handlers: handlers,
	}
}

// Connect starts connecting to roomID as participantID. It is a no-op while
// the channel is already connecting or connected.
func (c *Channel) Connect(roomID, participantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.roomID = roomID
	c.participantID = participantID
	c.cancel = cancel
	c.done = make(chan struct{})
	c.outbox = make(chan outbound, c.cfg.QueueSize)
	c.state = StateConnecting

	go func(done chan struct{}, outbox <-chan outbound) {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.run(ctx) }()
		go func() { defer wg.Done(); c.drain(ctx, outbox) }()
		wg.Wait()
	}(c.done, c.outbox)
}

// Disconnect unsubscribes both room topics, closes the connection and stops
// reconnecting. It blocks until the connection loop has exited and may be
// called any number of times.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	conn, subs := c.conn, c.subs
	c.cancel, c.conn, c.subs, c.outbox = nil, nil, nil, nil
	cancel()
	c.state = StateDisconnected
	c.mu.Unlock()

	l := c.logger()
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			l.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			l.Debug().Err(err).Msg("close failed")
		}
	}
	<-done
	l.Info().Msg("transport disconnected")
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether messages can currently be published.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Publish queues payload for topic and returns without waiting for the
// broker. While not connected, or when the queue is full, the payload is
// dropped; nothing is retried.
func (c *Channel) Publish(topic string, payload []byte) {
	c.mu.Lock()
	connected, outbox := c.conn != nil, c.outbox
	c.mu.Unlock()

	if !connected {
		l := c.logger()
		l.Debug().Str(pkglog.FieldTopic, topic).Msg("not connected, publish dropped")
		return
	}
	select {
	case outbox <- outbound{topic: topic, payload: payload}:
	default:
		l := c.logger()
		l.Warn().Str(pkglog.FieldTopic, topic).Msg("outbound queue full, publish dropped")
	}
}

// drain hands queued messages to whichever connection is active when they
// reach the head of the queue.
func (c *Channel) drain(ctx context.Context, outbox <-chan outbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			l := c.logger()
			if conn == nil {
				l.Debug().Str(pkglog.FieldTopic, msg.topic).Msg("connection lost, publish dropped")
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
			err := conn.Publish(pubCtx, msg.topic, msg.payload)
			cancel()
			if err != nil {
				l.Debug().Err(err).Str(pkglog.FieldTopic, msg.topic).Msg("publish failed, dropped")
			}
		}
	}
}

// SendCodeChange publishes a document snapshot to the room's code topic.
func (c *Channel) SendCodeChange(msg domain.CodeChangeMessage) {
	c.publishJSON(pubsub.CodeTopic(msg.RoomID), msg)
}

// SendCursorUpdate publishes a selection to the room's cursor topic.
func (c *Channel) SendCursorUpdate(msg domain.CursorUpdateMessage) {
	c.publishJSON(pubsub.CursorTopic(msg.RoomID), msg)
}

func (c *Channel) publishJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l := c.logger()
		l.Error().Err(err).Str(pkglog.FieldTopic, topic).Msg("failed to encode message")
		return
	}
	c.Publish(topic, data)
}

func (c *Channel) run(ctx context.Context) {
	l := c.logger()

	for {
		conn, err := c.broker.Dial(ctx)
		if err == nil {
			err = c.attach(ctx, conn)
		}

		if err == nil {
			l.Info().Msg("transport connected")
			select {
			case <-ctx.Done():
				return
			case <-conn.Done():
			}
			c.detach(conn)
			l.Warn().Dur("retry_in", c.cfg.ReconnectDelay).Msg("transport lost, reconnecting")
		} else {
			if ctx.Err() != nil {
				return
			}
			l.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("transport connect failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// attach subscribes the room topics on a fresh connection and makes it the
// active one.
func (c *Channel) attach(ctx context.Context, conn Conn) error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()

	codeSub, err := conn.Subscribe(pubsub.CodeTopic(roomID), c.onCodePayload)
	if err != nil {
		conn.Close()
		return err
	}
	cursorSub, err := conn.Subscribe(pubsub.CursorTopic(roomID), c.onCursorPayload)
	if err != nil {
		codeSub.Unsubscribe()
		conn.Close()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return ctx.Err()
	}
	c.conn = conn
	c.subs = []Subscription{codeSub, cursorSub}
	c.state = StateConnected
	return nil
}

func (c *Channel) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn, c.subs = nil, nil
		c.state = StateConnecting
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) onCodePayload(payload []byte) {
	msg, err := domain.DecodeCodeChange(payload)
	if err != nil {
		l := c.logger()
		l.Warn().Err(err).Msg("dropping code message")
		return
	}
	if !c.accept(msg.RoomID, msg.UserID) {
		return
	}
	if c.handlers.OnCode != nil {
		c.handlers.OnCode(msg)
	}
}

func (c *Channel) onCursorPayload(payload []byte) {
	msg, err := domain.DecodeCursorUpdate(payload)
	if err != nil {
		l := c.logger()
		l.Warn().Err(err).Msg("dropping cursor message")
		return
	}
	if !c.accept(msg.RoomID, msg.UserID) {
		return
	}
	if c.handlers.OnCursor != nil {
		c.handlers.OnCursor(msg)
	}
}

// accept filters out self-echo and traffic addressed to another room.
func (c *Channel) accept(roomID, userID string) bool {
	c.mu.Lock()
	self, room := c.participantID, c.roomID
	c.mu.Unlock()

	if userID == self {
		return false
	}
	if roomID != room {
		l := c.logger()
		l.Warn().Str("message_room", roomID).Msg("dropping message for another room")
		return false
	}
	return true
}

func (c *Channel) logger() zerolog.Logger {
	c.mu.Lock()
	room, pid := c.roomID, c.participantID
	c.mu.Unlock()
	return pkglog.Component("transport").With().
		Str(pkglog.FieldRoomID, room).
		Str(pkglog.FieldParticipantID, pid).
		Logger()
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Relay frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
	FrameConnected   = "connected"
	FrameMessage     = "message"
	FrameError       = "error"
)

// Destination prefixes used by the relay: clients send to /app/<topic> and
// receive on /topic/<topic>.
const (
	AppPrefix   = "/app/"
	TopicPrefix = "/topic/"
)

// Frame is a relay WebSocket frame.
type Frame struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
	Body        string `json:"body,omitempty"`
	Session     string `json:"session,omitempty"`
	Message     string `json:"message,omitempty"`
}

// WSConfig tunes the relay connection.
type WSConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
}

// DefaultWSConfig mirrors the relay's keepalive settings.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		MaxMessageSize:   1 << 20,
	}
}

// WSBroker dials the collab relay over WebSocket.
type WSBroker struct {
	cfg    WSConfig
	dialer *websocket.Dialer
	header http.Header
}

// NewWSBroker creates a broker for the relay at cfg.URL. header is sent
// with every handshake and may be nil.
func NewWSBroker(cfg WSConfig, header http.Header) *WSBroker {
	return &WSBroker{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		header: header,
	}
}

// Dial opens the socket and waits for the relay's connected frame. Cancelling
// ctx aborts the wait.
func (b *WSBroker) Dial(ctx context.Context) (Conn, error) {
	ws, _, err := b.dialer.DialContext(ctx, b.cfg.URL, b.header)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	ws.SetReadLimit(b.cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(b.cfg.HandshakeTimeout))
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	var hello Frame
	err = ws.ReadJSON(&hello)
	if !stop() {
		ws.Close()
		return nil, fmt.Errorf("relay handshake: %w", ctx.Err())
	}
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	if hello.Type != FrameConnected {
		ws.Close()
		return nil, fmt.Errorf("relay handshake: unexpected frame %q", hello.Type)
	}

	c := &wsConn{
		ws:         ws,
		cfg:        b.cfg,
		session:    hello.Session,
		send:       make(chan []byte, 256),
		handlers:   make(map[string]func([]byte)),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

type wsConn struct {
	ws      *websocket.Conn
	cfg     WSConfig
	session string

	send chan []byte

	mu       sync.RWMutex
	handlers map[string]func([]byte)

	closeOnce  sync.Once
	done       chan struct{}
	writerDone chan struct{}
}

func (c *wsConn) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	dest := TopicPrefix + topic

	c.mu.Lock()
	c.handlers[dest] = handler
	c.mu.Unlock()

	if err := c.enqueue(Frame{Type: FrameSubscribe, Destination: dest}); err != nil {
		c.mu.Lock()
		delete(c.handlers, dest)
		c.mu.Unlock()
		return nil, err
	}
	return &wsSubscription{conn: c, destination: dest}, nil
}

func (c *wsConn) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.enqueue(Frame{Type: FrameSend, Destination: AppPrefix + topic, Body: string(payload)})
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

// Close flushes queued frames, sends a close frame and waits for the writer
// to exit.
func (c *wsConn) Close() error {
	c.shutdown()
	<-c.writerDone
	return nil
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsConn) enqueue(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("transport: send buffer full")
	}
}

func (c *wsConn) readPump() {
	defer c.shutdown()
	l := pkglog.Component("ws-broker")

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Warn().Err(err).Str(pkglog.FieldSessionID, c.session).Msg("relay connection error")
			}
			return
		}

		switch f.Type {
		case FrameMessage:
			c.mu.RLock()
			h := c.handlers[f.Destination]
			c.mu.RUnlock()
			if h != nil {
				h([]byte(f.Body))
			}
		case FrameError:
			l.Warn().Str(pkglog.FieldSessionID, c.session).Str("error", f.Message).Msg("relay rejected frame")
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					if err := c.write(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.ws.WriteMessage(messageType, data)
}

type wsSubscription struct {
	conn        *wsConn
	destination string
}

func (s *wsSubscription) Unsubscribe() error {
	s.conn.mu.Lock()
	delete(s.conn.handlers, s.destination)
	s.conn.mu.Unlock()
	return s.conn.enqueue(Frame{Type: FrameUnsubscribe, Destination: s.destination})
}

package hub

import (
	"encoding/json"
	"sync"
	"time"

	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Config holds per-connection WebSocket settings.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// Hub tracks connected clients and their topic subscriptions.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	topics     map[string]map[string]*Client // topic -> clientID -> client
	unregister chan *Client
	broadcast  chan *TopicMessage
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     Config
}

// TopicMessage is an encoded frame for every subscriber of Topic.
type TopicMessage struct {
	Topic   string
	Message []byte
}

func NewHub(cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TopicMessage, 256),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		config:     cfg,
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	l := pkglog.Component("hub")

	for {
		select {
		case client := <-h.unregister:
			if h.remove(client) {
				l.Debug().Str(pkglog.FieldSessionID, client.ID).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for _, client := range h.topics[msg.Topic] {
				select {
				case client.Send <- msg.Message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				l.Warn().Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldTopic, msg.Topic).Msg("send buffer full, dropping client")
				h.remove(client)
			}

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.topics = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client's send channel, which makes its write pump send
// a close frame, and waits for Run to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.stopped
}

// Register adds client before its pumps start, so frames it reads can
// subscribe immediately.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	select {
	case <-h.stop:
		h.mu.Unlock()
		close(client.Send)
		return
	default:
	}
	h.clients[client.ID] = client
	h.mu.Unlock()
	l := pkglog.Component("hub")
	l.Debug().Str(pkglog.FieldSessionID, client.ID).Msg("client registered")
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// remove drops client from every topic and closes its send channel once.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	for topic, subs := range h.topics {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
	return true
}

// Subscribe adds client to topic. Subscribing twice is a no-op.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[string]*Client)
	}
	h.topics[topic][client.ID] = client
	l := pkglog.Component("hub")
	l.Debug().Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldTopic, topic).Msg("client subscribed")
}

func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	l := pkglog.Component("hub")
	l.Debug().Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldTopic, topic).Msg("client unsubscribed")
}

// BroadcastToTopic encodes message once and queues it for every subscriber.
func (h *Hub) BroadcastToTopic(topic string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.BroadcastRawToTopic(topic, data)
	return nil
}

// BroadcastRawToTopic queues already encoded bytes for every subscriber.
func (h *Hub) BroadcastRawToTopic(topic string, data []byte) {
	select {
	case h.broadcast <- &TopicMessage{Topic: topic, Message: data}:
	case <-h.stop:
	}
}

// Deliver queues data for a single client. It reports false when the client
// is gone or its buffer is full.
func (h *Hub) Deliver(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the number of local clients subscribed to topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

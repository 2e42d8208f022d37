package domain

import "github.com/weiawesome/wes-io-collab/pkg/pubsub"

// Frame types from client.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
)

// Frame types to client.
const (
	FrameConnected = "connected"
	FrameMessage   = "message"
	FrameError     = "error"
)

// Destination prefixes. Clients send to /app/<topic> and subscribe to
// /topic/<topic>.
const (
	AppPrefix   = "/app/"
	TopicPrefix = "/topic/"
)

// Frame is the single JSON envelope exchanged over the relay socket.
type Frame struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
	Body        string `json:"body,omitempty"`
	Session     string `json:"session,omitempty"`
	Message     string `json:"message,omitempty"`
}

// NewConnectedFrame creates the handshake frame for a new session.
func NewConnectedFrame(session string) *Frame {
	return &Frame{Type: FrameConnected, Session: session}
}

// NewMessageFrame wraps a broker payload for delivery to subscribers of topic.
func NewMessageFrame(topic string, payload []byte) *Frame {
	return &Frame{
		Type:        FrameMessage,
		Destination: TopicPrefix + topic,
		Body:        string(payload),
	}
}

// NewErrorFrame creates an error frame.
func NewErrorFrame(message string) *Frame {
	return &Frame{Type: FrameError, Message: message}
}

// CodeChangeMessage is a full document snapshot for a room.
type CodeChangeMessage struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	FullText string `json:"fullText"`
	Version  int    `json:"version"`
}

// CursorUpdateMessage is a participant's selection in a room.
type CursorUpdateMessage struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

// Route is a destination resolved to a broker topic.
type Route struct {
	Topic  string
	RoomID string
	Kind   string
}

// ParseRoute strips prefix from destination and validates the remaining
// room topic.
func ParseRoute(destination, prefix string) (Route, error) {
	if len(destination) <= len(prefix) || destination[:len(prefix)] != prefix {
		return Route{}, ErrUnknownDestination
	}
	topic := destination[len(prefix):]
	roomID, kind, err := pubsub.ParseTopic(topic)
	if err != nil {
		return Route{}, ErrUnknownDestination
	}
	return Route{Topic: topic, RoomID: roomID, Kind: kind}, nil
}

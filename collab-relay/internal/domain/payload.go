package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrMalformedBody      = errors.New("malformed body")
	ErrRoomMismatch       = errors.New("body roomId does not match destination")
)

type codeChangeBody struct {
	RoomID   string  `json:"roomId"`
	UserID   string  `json:"userId"`
	FullText *string `json:"fullText"`
	Version  int     `json:"version"`
}

type cursorUpdateBody struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	From   *int   `json:"from"`
	To     *int   `json:"to"`
}

// NormalizeBody decodes body as the message type route.Kind names, checks it
// belongs to route.RoomID and re-encodes it. Unknown fields are stripped.
func NormalizeBody(route Route, body string) ([]byte, error) {
	var msg any
	var roomID string

	switch route.Kind {
	case pubsub.KindCode:
		var b codeChangeBody
		if err := json.Unmarshal([]byte(body), &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if b.UserID == "" || b.FullText == nil {
			return nil, fmt.Errorf("%w: code change needs userId and fullText", ErrMalformedBody)
		}
		roomID = b.RoomID
		msg = CodeChangeMessage{RoomID: b.RoomID, UserID: b.UserID, FullText: *b.FullText, Version: b.Version}

	case pubsub.KindCursor:
		var b cursorUpdateBody
		if err := json.Unmarshal([]byte(body), &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if b.UserID == "" || b.From == nil || b.To == nil || *b.From < 0 || *b.To < 0 {
			return nil, fmt.Errorf("%w: cursor update needs userId and non-negative from/to", ErrMalformedBody)
		}
		roomID = b.RoomID
		msg = CursorUpdateMessage{RoomID: b.RoomID, UserID: b.UserID, From: *b.From, To: *b.To}

	default:
		return nil, ErrUnknownDestination
	}

	if roomID != route.RoomID {
		return nil, ErrRoomMismatch
	}
	return json.Marshal(msg)
}

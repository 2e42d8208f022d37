package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for payloads that are not a complete message.
var ErrMalformed = errors.New("malformed message")

type codeChangeWire struct {
	RoomID   string  `json:"roomId"`
	UserID   string  `json:"userId"`
	FullText *string `json:"fullText"`
	Version  int     `json:"version"`
}

type cursorUpdateWire struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	From   *int   `json:"from"`
	To     *int   `json:"to"`
}

// DecodeCodeChange parses a snapshot payload. A snapshot without fullText
// would otherwise decode as an empty document, so the field is required.
func DecodeCodeChange(data []byte) (CodeChangeMessage, error) {
	var w codeChangeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return CodeChangeMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case w.RoomID == "":
		return CodeChangeMessage{}, fmt.Errorf("%w: missing roomId", ErrMalformed)
	case w.UserID == "":
		return CodeChangeMessage{}, fmt.Errorf("%w: missing userId", ErrMalformed)
	case w.FullText == nil:
		return CodeChangeMessage{}, fmt.Errorf("%w: missing fullText", ErrMalformed)
	}
	return CodeChangeMessage{
		RoomID:   w.RoomID,
		UserID:   w.UserID,
		FullText: *w.FullText,
		Version:  w.Version,
	}, nil
}

// DecodeCursorUpdate parses a cursor payload. Offsets must be present and
// non-negative.
func DecodeCursorUpdate(data []byte) (CursorUpdateMessage, error) {
	var w cursorUpdateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return CursorUpdateMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case w.RoomID == "":
		return CursorUpdateMessage{}, fmt.Errorf("%w: missing roomId", ErrMalformed)
	case w.UserID == "":
		return CursorUpdateMessage{}, fmt.Errorf("%w: missing userId", ErrMalformed)
	case w.From == nil || w.To == nil:
		return CursorUpdateMessage{}, fmt.Errorf("%w: missing from/to", ErrMalformed)
	case *w.From < 0 || *w.To < 0:
		return CursorUpdateMessage{}, fmt.Errorf("%w: negative offset", ErrMalformed)
	}
	return CursorUpdateMessage{
		RoomID: w.RoomID,
		UserID: w.UserID,
		From:   *w.From,
		To:     *w.To,
	}, nil
}

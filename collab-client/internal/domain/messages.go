package domain

// CodeChangeMessage is a full-document snapshot published on
// room.<roomId>.code. Version is the sender's local counter and carries no
// ordering meaning for receivers.
type CodeChangeMessage struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	FullText string `json:"fullText"`
	Version  int    `json:"version"`
}

// CursorUpdateMessage is a participant's selection published on
// room.<roomId>.cursor. From == To is a caret.
type CursorUpdateMessage struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

// CompletionRequest is sent to the completion backend.
type CompletionRequest struct {
	Code         string `json:"code"`
	CursorOffset int    `json:"cursorOffset"`
	Language     string `json:"language"`
}

// CompletionResponse is the completion backend's reply.
type CompletionResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Range is a half-open span of rune offsets into the document.
type Range struct {
	From int
	To   int
}

// Proposal is one completion shown to the user.
type Proposal struct {
	Label      string
	InsertText string
}

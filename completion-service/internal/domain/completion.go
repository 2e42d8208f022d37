package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	DefaultLanguage = "javascript"
	MaxSuggestions  = 5
)

var ErrInvalidOffset = errors.New("cursorOffset out of range")

// CompletionRequest is the body of POST /api/complete. Every field is
// optional; see Normalize.
type CompletionRequest struct {
	Code         *string `json:"code"`
	CursorOffset *int    `json:"cursorOffset"`
	Language     *string `json:"language"`
}

// Prompt is a normalized completion request. Offset counts runes.
type Prompt struct {
	Code     string
	Offset   int
	Language string
}

// Normalize fills defaults: empty code, cursor at the end of the code and
// javascript.
func (r *CompletionRequest) Normalize() (Prompt, error) {
	p := Prompt{Language: DefaultLanguage}
	if r.Code != nil {
		p.Code = *r.Code
	}
	if r.Language != nil && *r.Language != "" {
		p.Language = *r.Language
	}

	n := utf8.RuneCountInString(p.Code)
	p.Offset = n
	if r.CursorOffset != nil {
		p.Offset = *r.CursorOffset
	}
	if p.Offset < 0 || p.Offset > n {
		return Prompt{}, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidOffset, p.Offset, n)
	}
	return p, nil
}

// CompletionResponse is the success body of POST /api/complete.
type CompletionResponse struct {
	Suggestions []string `json:"suggestions"`
}

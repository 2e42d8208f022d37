// Package completion asks a backend for code suggestions and turns them into
// editor proposals.
package completion

import (
	"context"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// MaxLabelLength is the longest label shown, in runes, before the ellipsis.
const MaxLabelLength = 40

const ellipsis = "…"

// Backend produces raw suggestions for a request.
type Backend interface {
	Complete(ctx context.Context, req domain.CompletionRequest) ([]string, error)
}

// Sink displays proposals.
type Sink interface {
	ShowProposals(at int, proposals []domain.Proposal)
}

// Poster runs fn on the session's event loop.
type Poster func(fn func())

// Coordinator issues one backend call per trigger. Calls are never
// cancelled or ordered: whichever response resolves last is what the user
// sees, even if it belongs to an older trigger.
type Coordinator struct {
	backend  Backend
	sink     Sink
	post     Poster
	language string
	timeout  time.Duration
}

// NewCoordinator creates a coordinator. language is sent with every request.
func NewCoordinator(backend Backend, sink Sink, post Poster, language string, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		backend:  backend,
		sink:     sink,
		post:     post,
		language: language,
		timeout:  timeout,
	}
}

// Request starts an asynchronous completion for text at cursorOffset and
// returns immediately. The result, or an empty proposal list on any failure,
// is delivered to the sink through the poster.
func (c *Coordinator) Request(text string, cursorOffset int) {
	req := domain.CompletionRequest{
		Code:         text,
		CursorOffset: cursorOffset,
		Language:     c.language,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		suggestions, err := c.backend.Complete(ctx, req)
		if err != nil {
			l := pkglog.Component("completion")
			l.Debug().Err(err).Int("offset", cursorOffset).Msg("completion failed")
			suggestions = nil
		}
		proposals := ToProposals(suggestions)

		c.post(func() {
			c.sink.ShowProposals(cursorOffset, proposals)
		})
	}()
}

// ToProposals maps suggestions to proposals. Nil or empty input yields nil.
func ToProposals(suggestions []string) []domain.Proposal {
	if len(suggestions) == 0 {
		return nil
	}
	out := make([]domain.Proposal, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, domain.Proposal{Label: Label(s), InsertText: s})
	}
	return out
}

// Label is the first line of s cut to MaxLabelLength runes, with an ellipsis
// whenever s as a whole is longer than that.
func Label(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	runes := []rune(first)
	if len(runes) > MaxLabelLength {
		runes = runes[:MaxLabelLength]
	}
	label := string(runes)
	if len([]rune(s)) > MaxLabelLength {
		label += ellipsis
	}
	return label
}

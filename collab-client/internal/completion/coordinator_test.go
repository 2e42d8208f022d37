package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
)

func TestLabel(t *testing.T) {
	fifty := strings.Repeat("x", 50)
	forty := strings.Repeat("y", 40)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "foo()", "foo()"},
		{"exactly limit", forty, forty},
		{"long single line", fifty, strings.Repeat("x", 40) + "…"},
		{"multi line short total", "if (a) {\n}", "if (a) {"},
		{"multi line long total", "short\n" + fifty, "short…"},
		{"runes not bytes", strings.Repeat("é", 41), strings.Repeat("é", 40) + "…"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.in); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToProposalsKeepsFullInsertText(t *testing.T) {
	long := "console.log(\"" + strings.Repeat("a", 60) + "\");\nreturn;"
	got := ToProposals([]string{long})
	if len(got) != 1 {
		t.Fatalf("got %d proposals", len(got))
	}
	if got[0].InsertText != long {
		t.Errorf("InsertText truncated: %q", got[0].InsertText)
	}
	if ToProposals(nil) != nil || ToProposals([]string{}) != nil {
		t.Error("empty input must yield nil")
	}
}

type sinkSpy struct {
	mu    sync.Mutex
	shown [][]domain.Proposal
	at    []int
}

func (s *sinkSpy) ShowProposals(at int, p []domain.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at = append(s.at, at)
	s.shown = append(s.shown, p)
}

func (s *sinkSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

// gatedBackend blocks each call until released and answers with the code it
// was asked about.
type gatedBackend struct {
	mu    sync.Mutex
	gates map[string]chan error
	reqs  []domain.CompletionRequest
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{gates: make(map[string]chan error)}
}

func (g *gatedBackend) gate(code string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[code]
	if !ok {
		ch = make(chan error, 1)
		g.gates[code] = ch
	}
	return ch
}

func (g *gatedBackend) Complete(ctx context.Context, req domain.CompletionRequest) ([]string, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	select {
	case err := <-g.gate(req.Code):
		if err != nil {
			return nil, err
		}
		return []string{"from " + req.Code}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitCount(t *testing.T, s *sinkSpy, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d results", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func inline(fn func()) { fn() }

func TestLastResolvedResponseWins(t *testing.T) {
	backend := newGatedBackend()
	sink := &sinkSpy{}
	c := NewCoordinator(backend, sink, inline, "javascript", time.Second)

	c.Request("first", 5)
	c.Request("second", 6)

	backend.gate("second") <- nil
	waitCount(t, sink, 1)
	backend.gate("first") <- nil
	waitCount(t, sink, 2)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	last := sink.shown[len(sink.shown)-1]
	if len(last) != 1 || last[0].InsertText != "from first" {
		t.Errorf("last shown = %+v, want the stale first response", last)
	}
	if sink.at[1] != 5 {
		t.Errorf("offset = %d", sink.at[1])
	}
}

func TestFailureShowsNoProposals(t *testing.T) {
	backend := newGatedBackend()
	sink := &sinkSpy{}
	c := NewCoordinator(backend, sink, inline, "go", time.Second)

	c.Request("boom", 0)
	backend.gate("boom") <- errors.New("service unavailable")
	waitCount(t, sink, 1)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.shown[0] != nil {
		t.Errorf("shown = %+v, want nil", sink.shown[0])
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.reqs[0].Language != "go" {
		t.Errorf("language = %q", backend.reqs[0].Language)
	}
}

func TestTimeoutShowsNoProposals(t *testing.T) {
	backend := newGatedBackend()
	sink := &sinkSpy{}
	c := NewCoordinator(backend, sink, inline, "javascript", 20*time.Millisecond)

	c.Request("never", 0)
	waitCount(t, sink, 1)
	if sink.shown[0] != nil {
		t.Errorf("shown = %+v", sink.shown[0])
	}
}

func TestResultsArePosted(t *testing.T) {
	backend := newGatedBackend()
	sink := &sinkSpy{}
	posted := make(chan func(), 1)
	c := NewCoordinator(backend, sink, func(fn func()) { posted <- fn }, "javascript", time.Second)

	c.Request("x", 1)
	backend.gate("x") <- nil

	select {
	case fn := <-posted:
		if sink.count() != 0 {
			t.Fatal("sink called before the posted function ran")
		}
		fn()
	case <-time.After(time.Second):
		t.Fatal("nothing posted")
	}
	if sink.count() != 1 {
		t.Errorf("sink calls = %d", sink.count())
	}
}

package session

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/editor"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/identity"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/transport"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

type stubBackend struct {
	mu   sync.Mutex
	reqs []domain.CompletionRequest
	out  []string
}

func (b *stubBackend) Complete(ctx context.Context, req domain.CompletionRequest) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	return b.out, nil
}

type participant struct {
	session *Session
	buffer  *editor.Buffer
}

func newParticipant(t *testing.T, bus *pubsub.MemoryBus, id string, backend *stubBackend) *participant {
	t.Helper()

	broker := transport.NewPubSubBroker(func(ctx context.Context) (pubsub.PubSub, error) {
		return pubsub.NewMemoryPubSub(bus), nil
	}, 50*time.Millisecond)
	newTransport := func(h transport.Handlers) Transport {
		return transport.NewChannel(broker, transport.Config{ReconnectDelay: 20 * time.Millisecond}, h)
	}

	buf := editor.NewBuffer("")
	cfg := DefaultConfig()
	s := New(identity.Identity{ParticipantID: id}, buf, newTransport, backend, cfg)
	buf.SetListener(s)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		s.Close()
		cancel()
		<-s.Done()
	})
	return &participant{session: s, buffer: buf}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTwoParticipantsConverge(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := newParticipant(t, bus, "A", &stubBackend{})
	b := newParticipant(t, bus, "B", &stubBackend{})

	if room := a.session.Join("r1"); room != "r1" {
		t.Fatalf("joined %q", room)
	}
	b.session.Join("r1")
	eventually(t, "both connected", func() bool {
		return a.session.Connected() && b.session.Connected()
	})

	a.buffer.Insert(0, "aaa")
	eventually(t, "B receives aaa", func() bool { return b.buffer.Text() == "aaa" })
	if a.buffer.Text() != "aaa" {
		t.Errorf("A text = %q, own echo must be ignored", a.buffer.Text())
	}

	b.buffer.SetText("bbb")
	eventually(t, "A receives bbb", func() bool { return a.buffer.Text() == "bbb" })

	// Give any stray echo time to arrive; both must stay on bbb.
	time.Sleep(50 * time.Millisecond)
	if a.buffer.Text() != "bbb" || b.buffer.Text() != "bbb" {
		t.Errorf("diverged: A=%q B=%q", a.buffer.Text(), b.buffer.Text())
	}

	// Applying remote snapshots never counts as a local edit.
	if v := b.session.LocalVersion(); v != 1 {
		t.Errorf("B LocalVersion = %d, want 1", v)
	}
}

func TestCursorOverlayAcrossParticipants(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := newParticipant(t, bus, "A", &stubBackend{})
	b := newParticipant(t, bus, "B", &stubBackend{})
	a.session.Join("r1")
	b.session.Join("r1")
	eventually(t, "both connected", func() bool {
		return a.session.Connected() && b.session.Connected()
	})

	b.buffer.SetText("hello")
	eventually(t, "A receives text", func() bool { return a.buffer.Text() == "hello" })

	b.buffer.Select(0, 0)
	eventually(t, "caret highlighted", func() bool {
		return reflect.DeepEqual(a.buffer.RawDecorations(), []domain.Range{{From: 0, To: 1}})
	})

	b.buffer.Select(1, 4)
	eventually(t, "selection replaces caret", func() bool {
		return reflect.DeepEqual(a.buffer.RawDecorations(), []domain.Range{{From: 1, To: 4}})
	})
	if n := a.session.RemoteCursors(); n != 1 {
		t.Errorf("A tracks %d cursors", n)
	}

	a.session.Forget("B")
	eventually(t, "overlay cleared", func() bool { return len(a.buffer.RawDecorations()) == 0 })
}

func TestNothingSentBeforeJoin(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := newParticipant(t, bus, "A", &stubBackend{})
	b := newParticipant(t, bus, "B", &stubBackend{})
	b.session.Join("r1")
	eventually(t, "B connected", b.session.Connected)

	a.buffer.Insert(0, "private")
	a.buffer.Select(0, 3)
	time.Sleep(50 * time.Millisecond)

	if b.buffer.Text() != "" {
		t.Errorf("B received %q from a participant that never joined", b.buffer.Text())
	}
	if a.session.Joined() {
		t.Error("A should not be joined")
	}
	if v := a.session.LocalVersion(); v != 1 {
		t.Errorf("LocalVersion = %d, want 1 even before join", v)
	}
}

func TestJoinDefaultsRoom(t *testing.T) {
	a := newParticipant(t, pubsub.NewMemoryBus(), "A", &stubBackend{})
	if room := a.session.Join(""); room != identity.DefaultRoomID {
		t.Errorf("room = %q", room)
	}
	if room := a.session.Join("elsewhere"); room != identity.DefaultRoomID {
		t.Errorf("second join moved to %q", room)
	}
}

func TestRequestCompletionShowsProposals(t *testing.T) {
	backend := &stubBackend{out: []string{"log(\"hi\")"}}
	a := newParticipant(t, pubsub.NewMemoryBus(), "A", backend)
	a.buffer.Insert(0, "console.")

	a.session.RequestCompletion(8)
	eventually(t, "proposals", func() bool {
		_, p := a.buffer.Proposals()
		return len(p) == 1
	})

	at, p := a.buffer.Proposals()
	if at != 8 || p[0].InsertText != "log(\"hi\")" {
		t.Errorf("proposals at %d = %+v", at, p)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.reqs[0].Code != "console." || backend.reqs[0].CursorOffset != 8 || backend.reqs[0].Language != "javascript" {
		t.Errorf("request = %+v", backend.reqs[0])
	}
}

func TestQueuedLocalEditNeverRebroadcastsRemoteSnapshot(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := newParticipant(t, bus, "A", &stubBackend{})
	a.session.Join("r1")
	eventually(t, "A connected", a.session.Connected)

	peer := pubsub.NewMemoryPubSub(bus)
	defer peer.Close()
	sent, err := peer.Subscribe(context.Background(), pubsub.CodeTopic("r1"))
	if err != nil {
		t.Fatal(err)
	}

	// Hold the loop so B's snapshot and A's keystroke queue up behind it,
	// remote first.
	gate := make(chan struct{})
	a.session.post(func() { <-gate })
	a.session.onRemoteCode(domain.CodeChangeMessage{RoomID: "r1", UserID: "B", FullText: "from-B", Version: 1})
	a.buffer.Insert(0, "L")
	close(gate)

	if v := a.session.LocalVersion(); v != 1 {
		t.Errorf("LocalVersion = %d, want 1", v)
	}
	if got := a.buffer.Text(); got != "from-B" {
		t.Errorf("A text = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case msg := <-sent:
			got, err := domain.DecodeCodeChange(msg.Payload)
			if err != nil {
				t.Fatal(err)
			}
			if got.UserID == "A" && got.FullText == "from-B" {
				t.Fatalf("A re-broadcast B's snapshot as its own: %+v", got)
			}
		default:
			return
		}
	}
}

func TestCaretAtEndOfDocumentShownToPeer(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := newParticipant(t, bus, "aaa", &stubBackend{})
	b := newParticipant(t, bus, "bbb", &stubBackend{})
	a.session.Join("r1")
	b.session.Join("r1")
	eventually(t, "both connected", func() bool {
		return a.session.Connected() && b.session.Connected()
	})

	a.buffer.Insert(0, "x")
	eventually(t, "B receives x", func() bool { return b.buffer.Text() == "x" })
	a.buffer.Insert(1, "y")
	eventually(t, "B receives xy", func() bool { return b.buffer.Text() == "xy" })

	a.buffer.Select(0, 1)
	a.buffer.Select(2, 2)
	eventually(t, "caret at offset 2", func() bool {
		return reflect.DeepEqual(b.buffer.RawDecorations(), []domain.Range{{From: 2, To: 3}})
	})

	shown := b.buffer.Decorations()
	if len(shown) != 1 || shown[0].To-shown[0].From < 1 || shown[0].To != 2 {
		t.Errorf("B shows %+v, want one visible caret at the end of \"xy\"", shown)
	}
	if a.buffer.Text() != "xy" {
		t.Errorf("A text = %q", a.buffer.Text())
	}
}

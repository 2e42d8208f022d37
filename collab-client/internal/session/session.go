// Package session wires the synchronization components of one participant
// around a single event loop.
package session

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/completion"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/docsync"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/editor"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/identity"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/presence"
	"github.com/weiawesome/wes-io-collab/collab-client/internal/transport"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Transport is the connection to the room.
type Transport interface {
	Connect(roomID, participantID string)
	Disconnect()
	Connected() bool
	SendCodeChange(msg domain.CodeChangeMessage)
	SendCursorUpdate(msg domain.CursorUpdateMessage)
}

// TransportFactory builds the transport, given the handlers it must feed.
type TransportFactory func(h transport.Handlers) Transport

// Config tunes a session.
type Config struct {
	CursorTTL         time.Duration
	SweepInterval     time.Duration
	Language          string
	CompletionTimeout time.Duration
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		CursorTTL:         5 * time.Minute,
		SweepInterval:     30 * time.Second,
		Language:          "javascript",
		CompletionTimeout: 10 * time.Second,
	}
}

// Session is one participant. Every state change runs on the goroutine
// executing Run, so a remote snapshot is never applied in the middle of
// handling a local edit.
type Session struct {
	ident  identity.Identity
	editor editor.Editor
	cfg    Config

	transport  Transport
	docs       *docsync.Engine
	presence   *presence.Tracker
	completion *completion.Coordinator

	events chan func()
	done   chan struct{}
}

// New assembles a session around ed. Call Run before Join.
func New(ident identity.Identity, ed editor.Editor, newTransport TransportFactory, backend completion.Backend, cfg Config) *Session {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	s := &Session{
		ident:  ident,
		editor: ed,
		cfg:    cfg,
		events: make(chan func(), 256),
		done:   make(chan struct{}),
	}
	s.transport = newTransport(transport.Handlers{
		OnCode:   s.onRemoteCode,
		OnCursor: s.onRemoteCursor,
	})
	s.docs = docsync.New(ed, s.transport, ident.ParticipantID)
	s.presence = presence.New(ed, s.transport, s.docs, ident.ParticipantID, cfg.CursorTTL)
	s.completion = completion.NewCoordinator(backend, ed, func(fn func()) { s.post(fn) }, cfg.Language, cfg.CompletionTimeout)
	return s
}

// ParticipantID returns the local participant id.
func (s *Session) ParticipantID() string {
	return s.ident.ParticipantID
}

// Run processes events until ctx is done.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	var sweep <-chan time.Time
	if s.cfg.CursorTTL > 0 {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.events:
			fn()
		case <-sweep:
			s.presence.Sweep()
		}
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Join connects to roomID (the default room when blank) and starts
// broadcasting. Joining again is a no-op. It returns the room joined.
func (s *Session) Join(roomID string) string {
	var joined string
	s.call(func() {
		if !s.docs.Joined() {
			room := identity.ResolveRoom(roomID)
			s.transport.Connect(room, s.ident.ParticipantID)
			s.docs.Join(room)

			l := pkglog.Component("session")
			l.Info().
				Str(pkglog.FieldRoomID, room).
				Str(pkglog.FieldParticipantID, s.ident.ParticipantID).
				Msg("joined room")
		}
		joined = s.docs.RoomID()
	})
	return joined
}

// Close disconnects from the room. The event loop keeps running until its
// context is cancelled.
func (s *Session) Close() {
	s.transport.Disconnect()
}

// Connected reports whether the transport is currently connected.
func (s *Session) Connected() bool {
	return s.transport.Connected()
}

// Joined reports whether Join has been called.
func (s *Session) Joined() bool {
	var joined bool
	s.call(func() { joined = s.docs.Joined() })
	return joined
}

// LocalVersion returns the local edit counter.
func (s *Session) LocalVersion() int {
	var v int
	s.call(func() { v = s.docs.LocalVersion() })
	return v
}

// RemoteCursors returns the number of tracked remote participants.
func (s *Session) RemoteCursors() int {
	var n int
	s.call(func() { n = s.presence.Len() })
	return n
}

// Forget removes a participant's cursor from the overlay.
func (s *Session) Forget(participantID string) {
	s.post(func() { s.presence.Forget(participantID) })
}

// RequestCompletion asks for proposals at cursorOffset in the current text.
func (s *Session) RequestCompletion(cursorOffset int) {
	s.post(func() {
		s.completion.Request(s.editor.Text(), cursorOffset)
	})
}

// OnDocumentChanged implements editor.Listener. The text travels with the
// event so a remote snapshot applied in between cannot be mistaken for it.
func (s *Session) OnDocumentChanged(text string) {
	s.post(func() { s.docs.OnLocalEdit(text) })
}

// OnSelectionChanged implements editor.Listener.
func (s *Session) OnSelectionChanged(r domain.Range) {
	s.post(func() { s.presence.OnLocalSelectionChange(r) })
}

func (s *Session) onRemoteCode(msg domain.CodeChangeMessage) {
	s.post(func() { s.docs.OnRemoteSnapshot(msg) })
}

func (s *Session) onRemoteCursor(msg domain.CursorUpdateMessage) {
	s.post(func() { s.presence.OnRemoteCursorUpdate(msg) })
}

// post queues fn on the event loop. It reports false once the loop is gone.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the event loop and waits for it.
func (s *Session) call(fn func()) bool {
	finished := make(chan struct{})
	if !s.post(func() { fn(); close(finished) }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-s.done:
		return false
	}
}

// Package docsync replicates the document as whole snapshots with
// last-writer-wins semantics. There is no merging: every remote snapshot
// that differs from the local text replaces it outright, so concurrent
// edits made between two snapshots are lost by design of the protocol.
package docsync

import (
	"unicode/utf8"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Document is the part of the editor the engine reads and overwrites.
type Document interface {
	Text() string
	ReplaceRange(from, to int, text string)
}

// Publisher sends snapshots to the room.
type Publisher interface {
	SendCodeChange(msg domain.CodeChangeMessage)
}

// Engine is not safe for concurrent use; the session serializes calls.
type Engine struct {
	doc           Document
	pub           Publisher
	participantID string

	roomID       string
	joined       bool
	localVersion int
}

// New creates an engine for participantID. It stays silent until Join.
func New(doc Document, pub Publisher, participantID string) *Engine {
	return &Engine{doc: doc, pub: pub, participantID: participantID}
}

// Join enables broadcasting to roomID. Joining twice keeps the first room.
func (e *Engine) Join(roomID string) {
	if e.joined {
		return
	}
	e.roomID = roomID
	e.joined = true
}

// Joined reports whether local edits are being broadcast.
func (e *Engine) Joined() bool { return e.joined }

// RoomID returns the joined room, or "" before Join.
func (e *Engine) RoomID() string { return e.roomID }

// LocalVersion returns the number of local edits seen so far.
func (e *Engine) LocalVersion() int { return e.localVersion }

// OnLocalEdit records a user edit that left the document holding text and,
// once joined, publishes that text. The counter advances even before
// joining. When the document no longer holds text, a later edit or a remote
// snapshot has replaced it; a newer local edit publishes on its own and a
// remote snapshot must not be sent back out under this participant, so
// nothing is published.
func (e *Engine) OnLocalEdit(text string) {
	e.localVersion++
	if !e.joined {
		return
	}
	if current := e.doc.Text(); current != text {
		l := pkglog.Component("docsync")
		l.Debug().
			Str(pkglog.FieldRoomID, e.roomID).
			Int(pkglog.FieldVersion, e.localVersion).
			Msg("local edit superseded, not published")
		return
	}
	e.pub.SendCodeChange(domain.CodeChangeMessage{
		RoomID:   e.roomID,
		UserID:   e.participantID,
		FullText: text,
		Version:  e.localVersion,
	})
}

// OnRemoteSnapshot applies a snapshot from another participant. Identical
// text is a no-op; anything else replaces the full document regardless of
// msg.Version. It reports whether the document was replaced. Applying a
// snapshot is not a local edit and is never re-broadcast.
func (e *Engine) OnRemoteSnapshot(msg domain.CodeChangeMessage) bool {
	current := e.doc.Text()
	if msg.FullText == current {
		return false
	}

	e.doc.ReplaceRange(0, utf8.RuneCountInString(current), msg.FullText)

	l := pkglog.Component("docsync")
	l.Debug().
		Str(pkglog.FieldRoomID, e.roomID).
		Str("from_participant", msg.UserID).
		Int(pkglog.FieldVersion, msg.Version).
		Msg("remote snapshot applied")
	return true
}

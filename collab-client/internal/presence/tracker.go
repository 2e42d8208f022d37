// Package presence tracks where the other participants' cursors are and
// keeps the editor's highlight overlay in step with them.
package presence

import (
	"sort"
	"time"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Overlay receives the full set of highlight ranges on every change.
type Overlay interface {
	SetDecorations(ranges []domain.Range)
}

// Publisher sends the local selection to the room.
type Publisher interface {
	SendCursorUpdate(msg domain.CursorUpdateMessage)
}

// Gate reports whether the session has joined a room.
type Gate interface {
	Joined() bool
	RoomID() string
}

type entry struct {
	cursor   domain.CursorUpdateMessage
	lastSeen time.Time
}

// Tracker is not safe for concurrent use; the session serializes calls.
type Tracker struct {
	overlay       Overlay
	pub           Publisher
	gate          Gate
	participantID string

	// ttl of zero keeps cursors until Forget.
	ttl time.Duration
	now func() time.Time

	cursors map[string]entry
}

// New creates an empty tracker. Remote cursors idle for longer than ttl are
// dropped by Sweep; a zero ttl disables that.
func New(overlay Overlay, pub Publisher, gate Gate, participantID string, ttl time.Duration) *Tracker {
	return &Tracker{
		overlay:       overlay,
		pub:           pub,
		gate:          gate,
		participantID: participantID,
		ttl:           ttl,
		now:           time.Now,
		cursors:       make(map[string]entry),
	}
}

// OnLocalSelectionChange publishes the local selection once joined.
func (t *Tracker) OnLocalSelectionChange(r domain.Range) {
	if !t.gate.Joined() {
		return
	}
	t.pub.SendCursorUpdate(domain.CursorUpdateMessage{
		RoomID: t.gate.RoomID(),
		UserID: t.participantID,
		From:   r.From,
		To:     r.To,
	})
}

// OnRemoteCursorUpdate replaces the sender's cursor and redraws the overlay.
func (t *Tracker) OnRemoteCursorUpdate(msg domain.CursorUpdateMessage) {
	t.cursors[msg.UserID] = entry{cursor: msg, lastSeen: t.now()}
	t.redraw()
}

// Forget drops a participant's cursor. It reports whether one was tracked.
func (t *Tracker) Forget(participantID string) bool {
	if _, ok := t.cursors[participantID]; !ok {
		return false
	}
	delete(t.cursors, participantID)
	t.redraw()
	return true
}

// Sweep evicts cursors not refreshed within the ttl and returns how many
// were removed.
func (t *Tracker) Sweep() int {
	if t.ttl <= 0 {
		return 0
	}
	cutoff := t.now().Add(-t.ttl)
	removed := 0
	for id, e := range t.cursors {
		if e.lastSeen.Before(cutoff) {
			delete(t.cursors, id)
			removed++
		}
	}
	if removed > 0 {
		l := pkglog.Component("presence")
		l.Debug().Int("evicted", removed).Msg("idle cursors evicted")
		t.redraw()
	}
	return removed
}

// Len returns the number of tracked participants.
func (t *Tracker) Len() int { return len(t.cursors) }

// cursor returns the last known cursor of a participant.
func (t *Tracker) cursor(participantID string) (domain.CursorUpdateMessage, bool) {
	e, ok := t.cursors[participantID]
	return e.cursor, ok
}

// Overlay computes the highlight set from scratch: one range per tracked
// participant, with a caret widened to a single unit so it stays visible.
func (t *Tracker) Overlay() []domain.Range {
	ranges := make([]domain.Range, 0, len(t.cursors))
	for _, e := range t.cursors {
		from, to := e.cursor.From, e.cursor.To
		if to < from {
			from, to = to, from
		}
		if from == to {
			to = from + 1
		}
		ranges = append(ranges, domain.Range{From: from, To: to})
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].From != ranges[j].From {
			return ranges[i].From < ranges[j].From
		}
		return ranges[i].To < ranges[j].To
	})
	return ranges
}

func (t *Tracker) redraw() {
	t.overlay.SetDecorations(t.Overlay())
}

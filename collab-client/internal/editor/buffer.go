package editor

import (
	"sync"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
)

// Buffer is an in-memory Editor. The Insert, Delete, SetText and Select
// methods model the user typing and notify the listener; the Editor methods
// are silent.
type Buffer struct {
	mu          sync.Mutex
	text        []rune
	sel         domain.Range
	decorations []domain.Range
	proposals   []domain.Proposal
	proposalsAt int
	listener    Listener
}

// NewBuffer creates a buffer holding initial.
func NewBuffer(initial string) *Buffer {
	return &Buffer{text: []rune(initial)}
}

// SetListener installs the listener for local activity.
func (b *Buffer) SetListener(l Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// Len returns the document length in runes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

func (b *Buffer) ReplaceRange(from, to int, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = splice(b.text, from, to, text)
	b.sel = domain.Range{
		From: clamp(b.sel.From, 0, len(b.text)),
		To:   clamp(b.sel.To, 0, len(b.text)),
	}
}

func (b *Buffer) SetDecorations(ranges []domain.Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decorations = append([]domain.Range(nil), ranges...)
}

// Decorations returns the current highlights clamped to the document.
// A caret at the end of a non-empty document covers the last character so
// it stays visible. Other ranges that fall entirely outside the document
// are omitted.
func (b *Buffer) Decorations() []domain.Range {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.text)
	out := make([]domain.Range, 0, len(b.decorations))
	for _, r := range b.decorations {
		if r.From == n && r.To > r.From && n > 0 {
			out = append(out, domain.Range{From: n - 1, To: n})
			continue
		}
		from := clamp(r.From, 0, len(b.text))
		to := clamp(r.To, from, len(b.text))
		if from == to {
			continue
		}
		out = append(out, domain.Range{From: from, To: to})
	}
	return out
}

// RawDecorations returns the highlights exactly as last set.
func (b *Buffer) RawDecorations() []domain.Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Range(nil), b.decorations...)
}

func (b *Buffer) ShowProposals(at int, proposals []domain.Proposal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proposalsAt = at
	b.proposals = append([]domain.Proposal(nil), proposals...)
}

// Proposals returns the offset and the proposals currently on display.
func (b *Buffer) Proposals() (int, []domain.Proposal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.proposalsAt, append([]domain.Proposal(nil), b.proposals...)
}

// Selection returns the local selection.
func (b *Buffer) Selection() domain.Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel
}

// Insert types s at offset at and leaves the caret after it.
func (b *Buffer) Insert(at int, s string) {
	b.edit(func() {
		at = clamp(at, 0, len(b.text))
		b.text = splice(b.text, at, at, s)
		caret := at + len([]rune(s))
		b.sel = domain.Range{From: caret, To: caret}
	})
}

// Delete removes [from, to) and leaves the caret at from.
func (b *Buffer) Delete(from, to int) {
	b.edit(func() {
		from = clamp(from, 0, len(b.text))
		b.text = splice(b.text, from, to, "")
		b.sel = domain.Range{From: from, To: from}
	})
}

// SetText replaces the whole document as a user action (paste over all).
func (b *Buffer) SetText(s string) {
	b.edit(func() {
		b.text = []rune(s)
		b.sel = domain.Range{From: len(b.text), To: len(b.text)}
	})
}

// Select moves the local selection.
func (b *Buffer) Select(from, to int) {
	b.mu.Lock()
	from = clamp(from, 0, len(b.text))
	to = clamp(to, 0, len(b.text))
	changed := b.sel != domain.Range{From: from, To: to}
	b.sel = domain.Range{From: from, To: to}
	l, sel := b.listener, b.sel
	b.mu.Unlock()

	if changed && l != nil {
		l.OnSelectionChanged(sel)
	}
}

// AcceptProposal inserts proposal i at the offset it was offered for.
func (b *Buffer) AcceptProposal(i int) bool {
	b.mu.Lock()
	if i < 0 || i >= len(b.proposals) {
		b.mu.Unlock()
		return false
	}
	p, at := b.proposals[i], b.proposalsAt
	b.proposals = nil
	b.mu.Unlock()

	b.Insert(at, p.InsertText)
	return true
}

func (b *Buffer) edit(apply func()) {
	b.mu.Lock()
	before, beforeSel := string(b.text), b.sel
	apply()
	after := string(b.text)
	selChanged := b.sel != beforeSel
	l, sel := b.listener, b.sel
	b.mu.Unlock()

	if l == nil {
		return
	}
	if after != before {
		l.OnDocumentChanged(after)
	}
	if selChanged {
		l.OnSelectionChanged(sel)
	}
}

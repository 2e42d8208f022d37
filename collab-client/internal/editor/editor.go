// Package editor defines the boundary between the synchronization core and
// the text editing surface, plus two implementations of it.
//
// All offsets are rune offsets into the document.
package editor

import "github.com/weiawesome/wes-io-collab/collab-client/internal/domain"

// Listener receives notifications about local user activity. Commands issued
// through Editor never produce notifications. OnDocumentChanged carries the
// document text as it was right after the edit.
type Listener interface {
	OnDocumentChanged(text string)
	OnSelectionChanged(r domain.Range)
}

// Editor is the set of commands the core issues to the editing surface.
type Editor interface {
	Text() string
	ReplaceRange(from, to int, text string)
	SetDecorations(ranges []domain.Range)
	ShowProposals(at int, proposals []domain.Proposal)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// splice replaces runes [from, to) of text, clamping the range.
func splice(text []rune, from, to int, insert string) []rune {
	from = clamp(from, 0, len(text))
	to = clamp(to, from, len(text))
	ins := []rune(insert)

	out := make([]rune, 0, len(text)-(to-from)+len(ins))
	out = append(out, text[:from]...)
	out = append(out, ins...)
	return append(out, text[to:]...)
}

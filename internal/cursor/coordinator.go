// Package cursor implements the pure transformation that keeps every
// session's cursor consistent after a document-length-changing
// operation. It has no state of its own; it operates over whatever
// session set the registry gives it.
package cursor

import "github.com/collabedit/cte-server/internal/session"

// Coordinate shifts the cursor of every session in sessions whose
// ActiveDocument equals documentID and whose current cursor is at or
// after start, by addend.
//
// Insertions pass a positive addend, shifting every cursor at or past
// the insert point forward. Deletions pass a negative addend; a cursor
// that would fall before the deletion's start is clamped to start
// rather than going negative, so it lands at the edge of the deleted
// range instead of inside now-removed content.
func Coordinate(sessions []*session.Session, start, addend, documentID int32) {
	for _, s := range sessions {
		if s.ActiveDocument != documentID {
			continue
		}
		if s.Cursor < start {
			continue
		}
		next := s.Cursor + addend
		if addend < 0 && next < start {
			next = start
		}
		s.Cursor = next
	}
}

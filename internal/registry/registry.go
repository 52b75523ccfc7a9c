// Package registry tracks every connected client session and provides
// the broadcast and cursor-coordination primitives the message handler
// needs. Every method here is called only from the single dispatch
// goroutine that owns the core state (see internal/core/loop.go), which
// is how the spec's "mutated only by the network thread" invariant
// holds without a mutex.
package registry

import (
	"github.com/collabedit/cte-server/internal/cursor"
	"github.com/collabedit/cte-server/internal/session"
	"github.com/collabedit/cte-server/internal/wire"
)

// Registry maps each live session by its process-local id and answers
// broadcast/disconnect/cursor-coordination queries over that set.
type Registry struct {
	sessions map[session.ID]*session.Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[session.ID]*session.Session)}
}

// Add registers an already-constructed session (the accept loop builds
// the Session; the dispatch goroutine is the one that must observe it
// so insertion happens here, on the owning goroutine).
func (r *Registry) Add(s *session.Session) {
	r.sessions[s.ID()] = s
}

// Get returns the session with the given id, or nil if it isn't
// registered (e.g. it has already been disconnected).
func (r *Registry) Get(id session.ID) *session.Session {
	return r.sessions[id]
}

// Remove closes and forgets a session. It does not itself emit any
// protocol notifications; the handler is responsible for broadcasting
// USER_QUIT, since only it knows whether the session had logged in.
func (r *Registry) Remove(s *session.Session) {
	delete(r.sessions, s.ID())
	s.Close()
}

// All returns every currently registered session. Callers must not
// retain the slice past the current dispatch iteration.
func (r *Registry) All() []*session.Session {
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports how many sessions are currently registered.
func (r *Registry) Len() int { return len(r.sessions) }

// Broadcast sends an already-encoded byte stream to every session whose
// ActiveDocument equals documentID, or to all sessions if documentID is
// 0. Send failures to individual sessions are swallowed here (the
// caller may log); the failing session will be reaped on its next
// observed read error, per spec.
func (r *Registry) Broadcast(bytes []byte, documentID int32, onSendErr func(*session.Session, error)) {
	for _, s := range r.sessions {
		if documentID != 0 && s.ActiveDocument != documentID {
			continue
		}
		if err := s.Send(bytes); err != nil && onSendErr != nil {
			onSendErr(s, err)
		}
	}
}

// BroadcastMessage encodes m once and fans it out via Broadcast.
func (r *Registry) BroadcastMessage(m *wire.Message, documentID int32, onSendErr func(*session.Session, error)) error {
	b, err := wire.Encode(m)
	if err != nil {
		return err
	}
	r.Broadcast(b, documentID, onSendErr)
	return nil
}

// UpdateCursors shifts every session's cursor in the given document
// whose current cursor is at or after start, by addend. Insertions use
// a positive addend; deletions a negative one. A cursor that would fall
// before the deletion start is clamped to start, so a client whose
// cursor sat inside a deleted range lands at its edge rather than going
// negative.
func (r *Registry) UpdateCursors(start, addend, documentID int32) {
	cursor.Coordinate(r.All(), start, addend, documentID)
}


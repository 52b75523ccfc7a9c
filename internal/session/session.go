// Package session implements a single connected client's state: its
// socket, its cursor, and which document it currently has active.
package session

import (
	"io"
	"net"
	"sync/atomic"
)

var nextSessionID int64

// ID identifies a Session for the lifetime of the process. It has no
// wire meaning; it exists so logs and the admin TUI can refer to a
// connection before (or absent) a login.
type ID int64

// Session is one accepted connection. A Session exclusively owns its
// socket; the socket is closed exactly once, when the session is
// removed from the registry.
type Session struct {
	id   ID
	conn net.Conn

	// UserID is 0 before login, a positive int32 afterwards. It never
	// reverts to 0 once set.
	UserID int32
	// UserName is set alongside UserID at login, for USER_JOIN/USER_QUIT
	// announcements and admin display.
	UserName string

	// ActiveDocument is 0 if the session has no document open, else a
	// positive document id.
	ActiveDocument int32

	// Cursor is -1 ("unknown") until the client has told the server a
	// position via SYNC_CURSOR. Inserts and deletions shift only known
	// cursors, so they never replace -1.
	Cursor int32
}

// New wraps an accepted connection in a Session with default field
// values (logged out, no active document, unknown cursor).
func New(conn net.Conn) *Session {
	return &Session{
		id:             ID(atomic.AddInt64(&nextSessionID, 1)),
		conn:           conn,
		Cursor:         -1,
		ActiveDocument: 0,
	}
}

// ID returns the session's process-local identifier.
func (s *Session) ID() ID { return s.id }

// RemoteAddr returns the session's peer address for logging.
func (s *Session) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// Receive blocks until exactly len(buf) bytes have arrived, or returns
// an error. Use of io.ReadFull gives us the spec's "receive(into buffer,
// n): blocks until exactly n bytes arrive" contract directly.
func (s *Session) Receive(buf []byte) error {
	_, err := io.ReadFull(s.conn, buf)
	return err
}

// Conn exposes the underlying connection for the wire codec, which
// needs to distinguish a clean close on the very first byte of a new
// message from a short read partway through one.
func (s *Session) Conn() net.Conn { return s.conn }

// Send writes all of b to the session's socket. A short write is
// reported as an error by net.Conn.Write itself.
func (s *Session) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// Close releases the session's socket. Safe to call once per session;
// the registry guarantees exactly-once removal.
func (s *Session) Close() error {
	return s.conn.Close()
}

// LoggedIn reports whether the pre-auth gate has been passed.
func (s *Session) LoggedIn() bool { return s.UserID != 0 }

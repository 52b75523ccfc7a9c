package core

import (
	"errors"
	"net"

	"github.com/collabedit/cte-server/internal/session"
	"github.com/collabedit/cte-server/internal/wire"
)

// event tags one decoded message (or a synthetic disconnect) with the
// session it arrived on, for delivery to the single dispatch goroutine.
type event struct {
	session *session.Session
	message *wire.Message
}

// Loop runs the accept loop, one read-goroutine per connection, and the
// single dispatch goroutine that owns st. Run returns only after
// Shutdown is called. A failed Accept is logged and the accept loop
// tries again; a closed listener ends the accept goroutine but not the
// dispatch loop.
//
// This is the idiomatic-Go reading of the select(2)-based event loop:
// the listener's Accept and every session's blocking read become
// goroutines feeding one events channel, and the dispatch goroutine
// selects over that channel and the shutdown channel rather than a
// manually built readiness set.
type Loop struct {
	st       *State
	listener net.Listener
	events   chan event
	shutdown chan struct{}
}

// NewLoop constructs a Loop bound to listener, dispatching through st.
func NewLoop(st *State, listener net.Listener) *Loop {
	return &Loop{
		st:       st,
		listener: listener,
		events:   make(chan event, 64),
		shutdown: make(chan struct{}),
	}
}

// Shutdown signals the dispatch goroutine to finish its in-flight
// iteration and return. Safe to call once; the analogue of the
// control thread writing to the socketpair.
func (l *Loop) Shutdown() {
	close(l.shutdown)
}

// Run blocks until shutdown. It spawns the accept goroutine and then
// runs the dispatch loop on the calling goroutine.
func (l *Loop) Run() {
	go l.acceptLoop()
	l.dispatchLoop()
}

func (l *Loop) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.st.Logger.Error("accept failed", "error", &OSError{Function: "accept", Err: err})
			continue
		}
		s := session.New(conn)
		l.events <- event{session: s, message: &wire.Message{Type: wire.Init}}
		go l.readLoop(s)
	}
}

// readLoop decodes one message at a time from s's socket and forwards
// each onto events. On any read error (clean disconnect, short read or
// socket failure, invalid type byte) it forwards a CLIENT_DISCONNECT
// pseudo-event instead and stops; the session's
// socket is left open for the dispatch goroutine to close via
// Registry.Remove, avoiding a race between this goroutine closing it
// and the dispatch goroutine still reading s's fields.
func (l *Loop) readLoop(s *session.Session) {
	addr := s.Conn().RemoteAddr().String()
	for {
		m, err := wire.ReadClientMessage(s.Conn())
		if err != nil {
			l.logReadError(addr, err)
			l.events <- event{session: s, message: &wire.Message{Type: wire.ClientDisconnect}}
			return
		}
		l.events <- event{session: s, message: m}
	}
}

// logReadError classifies a failed read against the wire package's
// sentinel errors before logging it, so a clean disconnect, a socket
// dropped mid-message, and a malformed type tag are distinguishable in
// the logs instead of collapsing into one generic error string.
func (l *Loop) logReadError(addr string, err error) {
	var invalidType *wire.InvalidTypeError
	switch {
	case errors.Is(err, wire.ErrDisconnected):
		l.st.Logger.Debug("session read", "error", &SocketDisconnected{Addr: addr})
	case errors.As(err, &invalidType):
		l.st.Logger.Warn("session read", "error", &InvalidMessageType{Addr: addr, Got: invalidType.Got})
	default:
		l.st.Logger.Warn("session read", "error", &SocketFailure{Addr: addr, Err: err})
	}
}

// dispatchLoop is the sole owner of l.st for the process's lifetime.
// Its select over events and shutdown is the direct analogue of the
// spec's select(2) over session sockets plus the control socketpair.
func (l *Loop) dispatchLoop() {
	for {
		select {
		case ev := <-l.events:
			l.handle(ev)
		case <-l.shutdown:
			return
		}
	}
}

func (l *Loop) handle(ev event) {
	switch ev.message.Type {
	case wire.Init:
		l.st.Registry.Add(ev.session)
	case wire.ClientDisconnect:
		l.st.Disconnect(ev.session)
	default:
		l.st.Dispatch(ev.session, ev.message)
	}
}

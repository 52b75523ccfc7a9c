package core

import (
	"github.com/hashicorp/go-hclog"

	"github.com/collabedit/cte-server/internal/auth"
	"github.com/collabedit/cte-server/internal/document"
	"github.com/collabedit/cte-server/internal/registry"
	"github.com/collabedit/cte-server/internal/session"
	"github.com/collabedit/cte-server/internal/wire"
)

// Handler is one registered protocol-message handler. State walks its
// handler slice in reverse registration order for every inbound
// message, so the last-registered handler runs first.
type Handler func(st *State, s *session.Session, m *wire.Message)

// State is the single owner of every piece of shared, mutable server
// state: the session registry, the document cache, and the per-session
// record of which documents each session has opened. It is built once
// in main and is touched exclusively by the dispatch goroutine.
type State struct {
	Registry *registry.Registry
	Cache    *document.Cache
	Creds    auth.Store
	Logger   hclog.Logger

	opened   map[session.ID]map[int32]bool
	handlers []Handler
}

// NewState wires together an already-constructed registry, cache, and
// credential store into one State value.
func NewState(reg *registry.Registry, cache *document.Cache, creds auth.Store, logger hclog.Logger) *State {
	return &State{
		Registry: reg,
		Cache:    cache,
		Creds:    creds,
		Logger:   logger,
		opened:   make(map[session.ID]map[int32]bool),
	}
}

// RegisterHandler appends h to the handler chain.
func (st *State) RegisterHandler(h Handler) {
	st.handlers = append(st.handlers, h)
}

// Dispatch routes one inbound message through every registered handler
// in reverse registration order. The distilled protocol registers
// exactly one handler, so in practice this loop runs once; the
// reverse-order walk is kept so a second handler could be layered in
// front of the main one without changing this method.
func (st *State) Dispatch(s *session.Session, m *wire.Message) {
	for i := len(st.handlers) - 1; i >= 0; i-- {
		st.handlers[i](st, s, m)
	}
}

// TrackOpen records that s has an outstanding open/activate reference
// to docID, for later release in CloseAllFor. A session holds at most
// one reference per document: if docID is already tracked for sid, the
// reference the caller just took via Open/Activate is released at once,
// so CloseAllFor's single Close per document balances the count.
func (st *State) TrackOpen(sid session.ID, docID int32) {
	set, ok := st.opened[sid]
	if !ok {
		set = make(map[int32]bool)
		st.opened[sid] = set
	}
	if set[docID] {
		st.Cache.Close(docID)
		return
	}
	set[docID] = true
}

// Disconnect runs the CLIENT_DISCONNECT pseudo-message through the
// handler chain (closing s's open documents and announcing USER_QUIT
// if it had logged in) and then removes s from the registry. A session
// that is no longer registered (for example one already removed by
// USER_LOGOUT, whose read goroutine then reports the closed socket) is
// ignored, so each session is disconnected exactly once.
func (st *State) Disconnect(s *session.Session) {
	if st.Registry.Get(s.ID()) == nil {
		return
	}
	st.Dispatch(s, &wire.Message{Type: wire.ClientDisconnect})
	st.Registry.Remove(s)
}

// CloseAllFor releases every document sid has opened, via the document
// cache's opener-count bookkeeping, and forgets sid's tracking set.
func (st *State) CloseAllFor(sid session.ID) {
	for docID := range st.opened[sid] {
		st.Cache.Close(docID)
	}
	delete(st.opened, sid)
}

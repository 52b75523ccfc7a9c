package core

import (
	"errors"

	"github.com/collabedit/cte-server/internal/auth"
	"github.com/collabedit/cte-server/internal/document"
	"github.com/collabedit/cte-server/internal/session"
	"github.com/collabedit/cte-server/internal/wire"
)

// HandleMessage is the main protocol handler: the authoritative
// per-type state transition. It is registered once on State in main,
// and is the only Handler the distilled protocol needs.
//
// Before login, only USER_LOGIN and the internal CLIENT_DISCONNECT
// (which always runs) are processed; every other message type is
// silently dropped.
func HandleMessage(st *State, s *session.Session, m *wire.Message) {
	if m.Type == wire.ClientDisconnect {
		handleDisconnect(st, s, m)
		return
	}

	if !s.LoggedIn() && m.Type != wire.UserLogin {
		return
	}

	switch m.Type {
	case wire.UserLogin:
		handleUserLogin(st, s, m)
	case wire.UserLogout:
		handleUserLogout(st, s, m)
	case wire.DocCreate:
		handleDocCreate(st, s, m)
	case wire.DocDelete:
		handleDocDelete(st, s, m)
	case wire.DocOpen:
		handleDocOpen(st, s, m)
	case wire.DocActivate:
		handleDocActivate(st, s, m)
	case wire.DocSave:
		handleDocSave(st, s, m)
	case wire.DocList:
		handleDocList(st, s, m)
	case wire.SyncByte, wire.SyncMultibyte:
		handleSync(st, s, m)
	case wire.SyncCursor:
		handleSyncCursor(st, s, m)
	case wire.SyncDeletion:
		handleSyncDeletion(st, s, m)
	}
}

func respond(s *session.Session, m *wire.Message) {
	b, err := wire.Encode(m)
	if err != nil {
		return
	}
	s.Send(b)
}

func respondStatus(s *session.Session, code wire.StatusCode) {
	respond(s, &wire.Message{Type: wire.Status, Status: code})
}

func handleUserLogin(st *State, s *session.Session, m *wire.Message) {
	id, err := st.Creds.Check(m.Name, m.Hash)
	switch {
	case err == nil:
		s.UserID = id
		s.UserName = m.Name
		respond(s, &wire.Message{Type: wire.UserLogin, Status: wire.OK})
		st.Registry.BroadcastMessage(&wire.Message{Type: wire.UserJoin, ID: id, Name: m.Name}, 0, nil)
	case errors.Is(err, auth.ErrUserNotExist):
		respond(s, &wire.Message{Type: wire.UserLogin, Status: wire.UserNotExist})
	case errors.Is(err, auth.ErrWrongPassword):
		respond(s, &wire.Message{Type: wire.UserLogin, Status: wire.UserWrongPassword})
	default:
		st.Logger.Error("credential check failed", "user", m.Name, "error", err)
		respond(s, &wire.Message{Type: wire.UserLogin, Status: wire.DBError})
	}
}

func handleUserLogout(st *State, s *session.Session, m *wire.Message) {
	respond(s, &wire.Message{Type: wire.UserLogout, Status: wire.OK})
	st.Disconnect(s)
}

func handleDocCreate(st *State, s *session.Session, m *wire.Message) {
	err := st.Cache.Create(m.Name)
	switch {
	case err == nil:
		respond(s, &wire.Message{Type: wire.DocCreate, Status: wire.OK, Name: m.Name})
	case errors.Is(err, document.ErrAlreadyExist):
		respond(s, &wire.Message{Type: wire.DocCreate, Status: wire.DocAlreadyExist, Name: m.Name})
	default:
		st.Logger.Error("doc create failed", "name", m.Name, "error", err)
		respond(s, &wire.Message{Type: wire.DocCreate, Status: wire.IOError, Name: m.Name})
	}
}

func handleDocDelete(st *State, s *session.Session, m *wire.Message) {
	err := st.Cache.Delete(m.Name)
	switch {
	case err == nil:
		respond(s, &wire.Message{Type: wire.DocDelete, Status: wire.OK, Name: m.Name})
	case errors.Is(err, document.ErrNotExist):
		respond(s, &wire.Message{Type: wire.DocDelete, Status: wire.DocNotExist, Name: m.Name})
	default:
		st.Logger.Error("doc delete failed", "name", m.Name, "error", err)
		respond(s, &wire.Message{Type: wire.DocDelete, Status: wire.IOError, Name: m.Name})
	}
}

func handleDocOpen(st *State, s *session.Session, m *wire.Message) {
	doc, err := st.Cache.Open(m.Name)
	if err != nil {
		if errors.Is(err, document.ErrNotExist) {
			respond(s, &wire.Message{Type: wire.DocOpen, Status: wire.DocNotExist, Name: m.Name})
			return
		}
		st.Logger.Error("doc open failed", "name", m.Name, "error", err)
		respond(s, &wire.Message{Type: wire.DocOpen, Status: wire.IOError, Name: m.Name})
		return
	}

	s.ActiveDocument = doc.ID
	st.TrackOpen(s.ID(), doc.ID)

	status := wire.OK
	if doc.Len() > 0 {
		status = wire.OKContentsFollowing
	}
	respond(s, &wire.Message{Type: wire.DocOpen, Status: status, ID: doc.ID, Name: m.Name})
	if status == wire.OKContentsFollowing {
		streamContents(s, doc)
	}
}

func handleDocActivate(st *State, s *session.Session, m *wire.Message) {
	doc, err := st.Cache.Activate(m.ID)
	if err != nil {
		respond(s, &wire.Message{Type: wire.DocActivate, Status: wire.DocNotExist, ID: m.ID})
		return
	}

	s.ActiveDocument = doc.ID
	st.TrackOpen(s.ID(), doc.ID)

	status := wire.OK
	if doc.Hash() != m.Hash {
		status = wire.OKContentsFollowing
	}
	respond(s, &wire.Message{Type: wire.DocActivate, Status: status, ID: doc.ID})
	if status == wire.OKContentsFollowing {
		streamContents(s, doc)
	}
}

// streamContents sends a document's contents as one SYNC_MULTIBYTE
// message from offset 0. The protocol places no limit on a single
// message's length field, so one message suffices per document.
func streamContents(s *session.Session, doc *document.Document) {
	respond(s, &wire.Message{
		Type:     wire.SyncMultibyte,
		Position: 0,
		Length:   int32(doc.Len()),
		Bytes:    doc.Contents,
	})
}

func handleDocSave(st *State, s *session.Session, m *wire.Message) {
	doc, err := st.Cache.Get(m.ID)
	if err != nil {
		respond(s, &wire.Message{Type: wire.DocSave, Status: wire.DocNotExist, ID: m.ID})
		return
	}
	if err := st.Cache.Save(doc.ID); err != nil {
		st.Logger.Error("doc save failed", "id", doc.ID, "error", err)
		respond(s, &wire.Message{Type: wire.DocSave, Status: wire.IOError, ID: m.ID})
		return
	}
	respond(s, &wire.Message{Type: wire.DocSave, Status: wire.OK, ID: m.ID})
	st.Registry.BroadcastMessage(&wire.Message{Type: wire.Status, Status: wire.DocSaved}, doc.ID, nil)
}

func handleDocList(st *State, s *session.Session, m *wire.Message) {
	names, err := st.Cache.ListNames()
	if err != nil {
		st.Logger.Error("doc list failed", "error", err)
		respondStatus(s, wire.IOError)
		return
	}
	bytes := make([]byte, 0, len(names)*128)
	for _, name := range names {
		field := make([]byte, 128)
		copy(field, name)
		bytes = append(bytes, field...)
	}
	respond(s, &wire.Message{Type: wire.DocList, Length: int32(len(names)), Bytes: bytes})
}

func handleSync(st *State, s *session.Session, m *wire.Message) {
	pos := m.Position
	if m.Type == wire.SyncByte {
		pos = s.Cursor
	}

	if s.ActiveDocument == 0 {
		respondStatus(s, wire.UserNoActiveDoc)
		return
	}
	if pos < 0 {
		respondStatus(s, wire.UserCursorUnknown)
		return
	}

	doc, err := st.Cache.Get(s.ActiveDocument)
	if err != nil {
		respondStatus(s, wire.DocNotExist)
		return
	}
	if int(pos) > doc.Len() {
		respondStatus(s, wire.UserCursorOutOfBounds)
		return
	}

	broadcastMsg := *m
	broadcastMsg.Position = pos
	st.Registry.BroadcastMessage(&broadcastMsg, s.ActiveDocument, nil)

	doc.Insert(pos, m.Bytes)
	st.Registry.UpdateCursors(pos, int32(len(m.Bytes)), s.ActiveDocument)
}

func handleSyncCursor(st *State, s *session.Session, m *wire.Message) {
	s.Cursor = m.Position
}

func handleSyncDeletion(st *State, s *session.Session, m *wire.Message) {
	if s.ActiveDocument == 0 {
		respondStatus(s, wire.UserNoActiveDoc)
		return
	}

	doc, err := st.Cache.Get(s.ActiveDocument)
	if err != nil {
		respondStatus(s, wire.DocNotExist)
		return
	}
	if m.Position < 0 || int(m.Position) >= doc.Len() {
		respondStatus(s, wire.UserCursorOutOfBounds)
		return
	}
	if int(m.Position+m.Length) > doc.Len() {
		respondStatus(s, wire.UserLengthTooLong)
		return
	}

	st.Registry.BroadcastMessage(m, s.ActiveDocument, nil)
	doc.Delete(m.Position, m.Length)
	st.Registry.UpdateCursors(m.Position, -m.Length, s.ActiveDocument)
}

func handleDisconnect(st *State, s *session.Session, m *wire.Message) {
	st.CloseAllFor(s.ID())
	if s.LoggedIn() {
		st.Registry.BroadcastMessage(&wire.Message{Type: wire.UserQuit, ID: s.UserID}, 0, nil)
	}
}

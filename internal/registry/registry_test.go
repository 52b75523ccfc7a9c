package registry

import (
	"net"
	"testing"

	"github.com/collabedit/cte-server/internal/session"
)

func newTestSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return session.New(server), client
}

func TestBroadcastFiltersByDocument(t *testing.T) {
	r := New()
	a, aClient := newTestSession(t)
	a.ActiveDocument = 1
	b, bClient := newTestSession(t)
	b.ActiveDocument = 2
	r.Add(a)
	r.Add(b)

	received := make(chan []byte, 2)
	read := func(c net.Conn) {
		buf := make([]byte, 2)
		n, err := c.Read(buf)
		if err == nil {
			received <- buf[:n]
		} else {
			received <- nil
		}
	}
	go read(aClient)
	go read(bClient)

	r.Broadcast([]byte("hi"), 1, nil)

	got := <-received
	if string(got) != "hi" {
		t.Errorf("session a (matching doc): got %q, want %q", got, "hi")
	}
	// bClient never receives anything since b is on a different
	// document; close it so its goroutine unblocks.
	bClient.Close()
	<-received
}

func TestUpdateCursorsShiftsAndClamps(t *testing.T) {
	r := New()
	a, _ := newTestSession(t)
	a.ActiveDocument = 1
	a.Cursor = 5
	b, _ := newTestSession(t)
	b.ActiveDocument = 1
	b.Cursor = 2
	other, _ := newTestSession(t)
	other.ActiveDocument = 2
	other.Cursor = 5

	r.Add(a)
	r.Add(b)
	r.Add(other)

	// Insert 3 bytes at position 4: a's cursor (>=4) shifts to 8; b's
	// cursor (2, below start) is untouched; other doc is untouched.
	r.UpdateCursors(4, 3, 1)
	if a.Cursor != 8 {
		t.Errorf("a.Cursor: got %d, want 8", a.Cursor)
	}
	if b.Cursor != 2 {
		t.Errorf("b.Cursor: got %d, want 2", b.Cursor)
	}
	if other.Cursor != 5 {
		t.Errorf("other.Cursor: got %d, want 5", other.Cursor)
	}

	// Delete 6 bytes starting at 4: a's cursor (8) shifts to 2, which
	// is below start (4), so it clamps to 4.
	r.UpdateCursors(4, -6, 1)
	if a.Cursor != 4 {
		t.Errorf("a.Cursor after delete: got %d, want 4 (clamped)", a.Cursor)
	}
}

func TestRemoveClosesAndForgets(t *testing.T) {
	r := New()
	a, _ := newTestSession(t)
	r.Add(a)
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}
	r.Remove(a)
	if r.Len() != 0 {
		t.Fatalf("Len after remove: got %d, want 0", r.Len())
	}
	if r.Get(a.ID()) != nil {
		t.Fatalf("Get after remove: expected nil")
	}
}

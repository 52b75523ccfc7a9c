package core

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/collabedit/cte-server/internal/document"
	"github.com/collabedit/cte-server/internal/registry"
	"github.com/collabedit/cte-server/internal/wire"
)

func newLoopForTest(t *testing.T) (*Loop, net.Listener) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	store, err := document.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	st := NewState(registry.New(), document.NewCache(store), newFakeCreds(), hclog.NewNullLogger())
	st.RegisterHandler(HandleMessage)
	l := NewLoop(st, listener)
	return l, listener
}

func TestLoopLoginOverRealSocket(t *testing.T) {
	l, listener := newLoopForTest(t)
	go l.Run()
	defer l.Shutdown()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	hash := wire.Hash{7}
	l.st.Creds.Create("alice", hash)

	if err := wire.WriteClientMessage(conn, &wire.Message{Type: wire.UserLogin, Name: "alice", Hash: hash}); err != nil {
		t.Fatalf("write login: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := wire.ReadServerMessage(conn)
	if err != nil {
		t.Fatalf("read login response: %v", err)
	}
	if resp.Type != wire.UserLogin || resp.Status != wire.OK {
		t.Fatalf("login response: got %+v", resp)
	}

	join, err := wire.ReadServerMessage(conn)
	if err != nil {
		t.Fatalf("read join broadcast: %v", err)
	}
	if join.Type != wire.UserJoin || join.Name != "alice" {
		t.Fatalf("join broadcast: got %+v", join)
	}
}

func TestLoopShutdownStopsDispatch(t *testing.T) {
	l, _ := newLoopForTest(t)
	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	l.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Shutdown")
	}
}

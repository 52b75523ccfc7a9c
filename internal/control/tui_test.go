package control

import (
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/collabedit/cte-server/internal/auth"
	"github.com/collabedit/cte-server/internal/core"
	"github.com/collabedit/cte-server/internal/document"
	"github.com/collabedit/cte-server/internal/registry"
	"github.com/collabedit/cte-server/internal/wire"
)

type fakeCreds struct {
	byName map[string]wire.Hash
}

func (f *fakeCreds) Check(name string, hash wire.Hash) (int32, error) {
	h, ok := f.byName[name]
	if !ok {
		return 0, auth.ErrUserNotExist
	}
	if h != hash {
		return 0, auth.ErrWrongPassword
	}
	return 1, nil
}

func (f *fakeCreds) Create(name string, hash wire.Hash) error {
	if _, ok := f.byName[name]; ok {
		return auth.ErrUserAlreadyExist
	}
	f.byName[name] = hash
	return nil
}

func (f *fakeCreds) Remove(name string) error {
	if _, ok := f.byName[name]; !ok {
		return auth.ErrUserNotExist
	}
	delete(f.byName, name)
	return nil
}

func (f *fakeCreds) Close() error { return nil }

func newTestModel(t *testing.T) *Model {
	t.Helper()
	store, err := document.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	st := core.NewState(registry.New(), document.NewCache(store), &fakeCreds{byName: make(map[string]wire.Hash)}, hclog.NewNullLogger())
	return NewModel(st, func() {})
}

func TestRunCommandCreateAndRemove(t *testing.T) {
	m := newTestModel(t)
	m.runCommand("create alice hunter2")
	if len(m.log) == 0 {
		t.Fatalf("expected log entry after create")
	}
	if got := m.log[len(m.log)-1]; got != "created user alice" {
		t.Fatalf("log: got %q", got)
	}

	m.runCommand("create alice hunter2")
	if got := m.log[len(m.log)-1]; got == "created user alice" {
		t.Fatalf("expected duplicate create to fail, got %q", got)
	}

	m.runCommand("remove alice")
	if got := m.log[len(m.log)-1]; got != "removed user alice" {
		t.Fatalf("log: got %q", got)
	}

	m.runCommand("remove alice")
	if got := m.log[len(m.log)-1]; got == "removed user alice" {
		t.Fatalf("expected duplicate remove to fail, got %q", got)
	}
}

func TestRunCommandQuitSetsShutdownFlag(t *testing.T) {
	var called bool
	store, _ := document.NewStore(t.TempDir())
	st := core.NewState(registry.New(), document.NewCache(store), &fakeCreds{byName: make(map[string]wire.Hash)}, hclog.NewNullLogger())
	m := NewModel(st, func() { called = true })

	m.runCommand("quit")
	if !called {
		t.Fatalf("expected shutdown to be called")
	}
	if !m.quitting {
		t.Fatalf("expected m.quitting to be set")
	}
}

func TestRunCommandUnknown(t *testing.T) {
	m := newTestModel(t)
	m.runCommand("frobnicate")
	if got := m.log[len(m.log)-1]; got != `unknown command "frobnicate"` {
		t.Fatalf("log: got %q", got)
	}
}

func TestRunCommandListShowsCreatedDocument(t *testing.T) {
	m := newTestModel(t)
	if err := m.st.Cache.Create("notes.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.runCommand("list")
	if len(m.log) < 2 {
		t.Fatalf("expected two log lines, got %v", m.log)
	}
	if got := m.log[len(m.log)-2]; got != "documents on disk: notes.txt" {
		t.Fatalf("on-disk log: got %q", got)
	}
	if got := m.log[len(m.log)-1]; got != "documents open: (none)" {
		t.Fatalf("open log: got %q", got)
	}
}

func TestRunCommandListShowsOpenDocument(t *testing.T) {
	m := newTestModel(t)
	if err := m.st.Cache.Create("notes.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := m.st.Cache.Open("notes.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	m.runCommand("list")
	got := m.log[len(m.log)-1]
	want := fmt.Sprintf("documents open: notes.txt (id=%d, openers=1)", doc.ID)
	if got != want {
		t.Fatalf("open log: got %q, want %q", got, want)
	}
}

// Package control implements the admin/control surface: a terminal UI
// showing connected sessions and open documents, a command line for
// account lifecycle management, and the "quit" command that signals
// server shutdown — the concrete stand-in for the spec's external
// terminal/administrative UI collaborator and its control-thread
// socketpair write.
package control

import (
	"crypto/sha1"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/collabedit/cte-server/internal/core"
	"github.com/collabedit/cte-server/internal/wire"
)

// Model is the bubbletea model for the admin TUI.
type Model struct {
	st       *core.State
	shutdown func()

	input    string
	log      []string
	quitting bool
}

// NewModel builds a TUI model bound to st. shutdown is called exactly
// once, when the operator issues the "quit" command or presses ctrl+c;
// it is the Go analogue of the control thread's socketpair write.
func NewModel(st *core.State, shutdown func()) *Model {
	return &Model{st: st, shutdown: shutdown}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.shutdown()
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.runCommand(strings.TrimSpace(m.input))
			m.input = ""
			if m.quitting {
				return m, tea.Quit
			}
			return m, nil
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil
		default:
			m.input += msg.String()
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cte-server admin — %d session(s)\n\n", m.st.Registry.Len())
	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n> ")
	b.WriteString(m.input)
	b.WriteString("\ncommands: create <name> <password> | remove <name> | list | quit\n")
	return b.String()
}

func (m *Model) logf(format string, args ...any) {
	m.log = append(m.log, fmt.Sprintf(format, args...))
	if len(m.log) > 20 {
		m.log = m.log[len(m.log)-20:]
	}
}

// runCommand parses and executes one admin command line. This is the
// account-lifecycle path the wire protocol never exposes directly:
// create/remove are driven only from here, closing the loop on the
// credential store's external interface.
func (m *Model) runCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "quit":
		m.shutdown()
		m.quitting = true

	case "create":
		if len(fields) != 3 {
			m.logf("usage: create <name> <password>")
			return
		}
		if err := m.st.Creds.Create(fields[1], hashPassword(fields[2])); err != nil {
			m.logf("create %s: %s", fields[1], err)
			return
		}
		m.logf("created user %s", fields[1])

	case "remove":
		if len(fields) != 2 {
			m.logf("usage: remove <name>")
			return
		}
		if err := m.st.Creds.Remove(fields[1]); err != nil {
			m.logf("remove %s: %s", fields[1], err)
			return
		}
		m.logf("removed user %s", fields[1])

	case "list":
		names, err := m.st.Cache.ListNames()
		if err != nil {
			m.logf("list: %s", err)
			return
		}
		m.logf("documents on disk: %s", strings.Join(names, ", "))

		open := m.st.Cache.OpenDocuments()
		if len(open) == 0 {
			m.logf("documents open: (none)")
			return
		}
		parts := make([]string, len(open))
		for i, doc := range open {
			parts[i] = fmt.Sprintf("%s (id=%d, openers=%d)", doc.Name, doc.ID, doc.OpenerCount)
		}
		m.logf("documents open: %s", strings.Join(parts, ", "))

	default:
		m.logf("unknown command %q", fields[0])
	}
}

func hashPassword(password string) wire.Hash {
	return wire.Hash(sha1.Sum([]byte(password)))
}

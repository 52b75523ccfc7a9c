// Command cte-server runs the collaborative text editor server: it
// accepts client connections, speaks the wire protocol defined in
// internal/wire, and serves an admin TUI for session/account
// management on the same process.
package main

import (
	"fmt"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/collabedit/cte-server/internal/auth"
	"github.com/collabedit/cte-server/internal/config"
	"github.com/collabedit/cte-server/internal/control"
	"github.com/collabedit/cte-server/internal/core"
	"github.com/collabedit/cte-server/internal/document"
	"github.com/collabedit/cte-server/internal/registry"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "cte-server",
		Short: "Collaborative text editor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}
	config.Bind(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "cte-server",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	creds, err := auth.Open(cfg.CredentialDB)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer creds.Close()

	store, err := document.NewStore(cfg.DocumentDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	cache := document.NewCache(store)

	st := core.NewState(registry.New(), cache, creds, logger)
	st.RegisterHandler(core.HandleMessage)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	defer listener.Close()
	logger.Info("listening", "addr", cfg.ListenAddr, "backlog", cfg.Backlog)

	loop := core.NewLoop(st, listener)
	go loop.Run()

	model := control.NewModel(st, loop.Shutdown)
	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		logger.Error("admin TUI exited with error", "error", err)
	}

	return nil
}

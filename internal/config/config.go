// Package config loads the server's runtime configuration from flags,
// environment variables, and an optional config file, via spf13/cobra
// for the command surface and spf13/viper for layered resolution.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved, immutable configuration the rest of
// the process is built from.
type Config struct {
	ListenAddr     string
	Backlog        int
	DocumentDir    string
	CredentialDB   string
	LogLevel       string
	ConfigFilePath string
}

const (
	defaultPort         = 1337
	defaultBacklog      = 4
	defaultDocumentDir  = "./documents/"
	defaultCredentialDB = "./user.sql"
	defaultLogLevel     = "info"
)

// Bind attaches every config flag to cmd's flag set and binds each one
// into v, so that flag > env > config-file > default precedence falls
// out of viper's normal resolution order.
func Bind(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.Int("port", defaultPort, "TCP port to listen on")
	flags.Int("backlog", defaultBacklog, "listen backlog size (logged at startup; not applied to the listener)")
	flags.String("document-dir", defaultDocumentDir, "directory holding document files")
	flags.String("credential-db", defaultCredentialDB, "path to the SQLite credential database")
	flags.String("log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")
	flags.String("config", "", "path to a config file (yaml/json/toml)")

	for _, name := range []string{"port", "backlog", "document-dir", "credential-db", "log-level", "config"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("CTE")
	v.AutomaticEnv()
}

// Load resolves v's bound flags (and, if --config was given, an on-disk
// config file) into a Config. The listener always binds loopback only,
// per the protocol's literal default; only the port is configurable.
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	return &Config{
		ListenAddr:     fmt.Sprintf("127.0.0.1:%d", v.GetInt("port")),
		Backlog:        v.GetInt("backlog"),
		DocumentDir:    v.GetString("document-dir"),
		CredentialDB:   v.GetString("credential-db"),
		LogLevel:       v.GetString("log-level"),
		ConfigFilePath: v.GetString("config"),
	}, nil
}

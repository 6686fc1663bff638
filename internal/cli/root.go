// Package cli implements the cclaw CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tv7/C-Claw/internal/classifier"
	"github.com/tv7/C-Claw/internal/config"
	"github.com/tv7/C-Claw/internal/logging"
	"github.com/tv7/C-Claw/internal/memory"
	"github.com/tv7/C-Claw/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "cclaw",
	Short: "Memory-backed personal assistant relay",
	Long:  "Relay chat messages to an assistant with per-owner long-term memory. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $CCLAW_DB or ~/.cclaw/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (default: $CCLAW_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $CCLAW_LOG_LEVEL or info)")
}

// loadConfig resolves the configuration; command-line flags win.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		exitErr("init logger", err)
	}
	return logger
}

func openStore(cfg *config.Config, logger *zap.Logger) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, store.WithLogger(logger))
}

func newManager(cfg *config.Config, s memory.Store, logger *zap.Logger) *memory.Manager {
	return memory.NewManager(s, classifier.New(cfg.ClassifierOptions()), cfg.MemoryOptions(), logger)
}

// setup is the common prologue of commands that touch the database.
func setup() (*config.Config, *zap.Logger, *store.SQLiteStore) {
	cfg := loadConfig()
	logger := newLogger(cfg)
	s, err := openStore(cfg, logger)
	if err != nil {
		exitErr("open store", err)
	}
	return cfg, logger, s
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

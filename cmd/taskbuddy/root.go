package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/taskbuddy/internal/blob"
	"github.com/nhle/taskbuddy/internal/cache"
	"github.com/nhle/taskbuddy/internal/credential"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/notify"
	"github.com/nhle/taskbuddy/internal/service"
	"github.com/nhle/taskbuddy/internal/store"
)

var (
	cfgPath string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "taskbuddy",
	Short: "Personal task board with a terminal dashboard and HTTP API",
	Long: `taskbuddy - track tasks across Todo, In-Progress and Completed lanes.

Run the dashboard with "taskbuddy tui" or serve the HTTP API with "taskbuddy serve".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides database.path)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Task Commands:"},
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

// env is what every command opens: config, logger and store.
type env struct {
	cfg    *model.AppConfig
	logger *slog.Logger
	store  *store.SQLiteStore
}

// openEnv loads config and opens the database. Logs go to logOut.
func openEnv(logOut io.Writer) (*env, error) {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	logger := newLogger(cfg.Log, logOut)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", cfg.Database.Path)
	return &env{cfg: cfg, logger: logger, store: st}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// newLogger builds the process logger from log.level and log.format.
func newLogger(cfg model.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// taskService wires the service over the store, attachment directory
// and cache. A nil notifier disables notifications.
func (e *env) taskService(n notify.Notifier) (*service.TaskService, *blob.Store, error) {
	c, err := cache.New(e.cfg.Cache.Size)
	if err != nil {
		return nil, nil, err
	}
	files, err := blob.NewDir(e.cfg.Storage.AttachmentsDir, e.cfg.Storage.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	opts := []service.Option{service.WithLogger(e.logger)}
	if n != nil {
		opts = append(opts, service.WithNotifier(e.store, n))
	}
	return service.New(e.store, files, c, opts...), files, nil
}

// notifier returns the IMAP notifier when notify.enabled is set. The
// password comes from the keyring.
func (e *env) notifier(vault *credential.Vault) (notify.Notifier, error) {
	if !e.cfg.Notify.Enabled {
		return nil, nil
	}
	password, err := vault.IMAPPassword()
	if err != nil {
		return nil, fmt.Errorf("reading IMAP password: %w", err)
	}
	if password == "" {
		return nil, fmt.Errorf("notify.enabled is set but no IMAP password is stored (run taskbuddy login --imap-password)")
	}
	return notify.NewIMAPNotifier(e.cfg.Notify, password), nil
}

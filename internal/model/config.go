package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	ListenAddr         string `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
	// SignInSecret, when set, is required on POST /v1/auth/session.
	SignInSecret       string `mapstructure:"sign_in_secret" yaml:"sign_in_secret"`
}

// StorageConfig controls where attachment content is written and how
// its public URLs are built.
type StorageConfig struct {
	AttachmentsDir string `mapstructure:"attachments_dir" yaml:"attachments_dir"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
}

// CacheConfig sizes the per-lane read-through cache.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme       string `mapstructure:"theme" yaml:"theme"`
	DefaultView string `mapstructure:"default_view" yaml:"default_view"`
}

// NotifyConfig configures the IMAP mailbox notifications are filed into.
// The password is read from the system keyring, never from this file.
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
	From     string `mapstructure:"from" yaml:"from"`
}

// ReminderConfig controls the due-date reminder scheduler.
type ReminderConfig struct {
	IntervalSec  int `mapstructure:"interval_sec" yaml:"interval_sec"`
	HorizonHours int `mapstructure:"horizon_hours" yaml:"horizon_hours"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Reminder ReminderConfig `mapstructure:"reminder" yaml:"reminder"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/taskbuddy, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskbuddy")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskbuddy/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Database: DatabaseConfig{Path: filepath.Join(dir, "taskbuddy.db")},
		Server: ServerConfig{
			ListenAddr:         ":8080",
			ShutdownTimeoutSec: 30,
		},
		Storage: StorageConfig{
			AttachmentsDir: filepath.Join(dir, "attachments"),
			BaseURL:        "http://localhost:8080/attachments",
		},
		Cache:   CacheConfig{Size: 256},
		Display: DisplayConfig{Theme: ThemeLight, DefaultView: ViewList},
		Notify: NotifyConfig{
			Port:    "993",
			TLS:     true,
			Mailbox: "TaskBuddy",
		},
		Reminder: ReminderConfig{IntervalSec: 900, HorizonHours: 24},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// TASKBUDDY_* environment variables override file values.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskbuddy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key.
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("server.listen_addr", def.Server.ListenAddr)
	v.SetDefault("server.shutdown_timeout_sec", def.Server.ShutdownTimeoutSec)
	v.SetDefault("server.sign_in_secret", def.Server.SignInSecret)
	v.SetDefault("storage.attachments_dir", def.Storage.AttachmentsDir)
	v.SetDefault("storage.base_url", def.Storage.BaseURL)
	v.SetDefault("cache.size", def.Cache.Size)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.default_view", def.Display.DefaultView)
	v.SetDefault("notify.enabled", def.Notify.Enabled)
	v.SetDefault("notify.host", def.Notify.Host)
	v.SetDefault("notify.port", def.Notify.Port)
	v.SetDefault("notify.username", def.Notify.Username)
	v.SetDefault("notify.tls", def.Notify.TLS)
	v.SetDefault("notify.mailbox", def.Notify.Mailbox)
	v.SetDefault("notify.from", def.Notify.From)
	v.SetDefault("reminder.interval_sec", def.Reminder.IntervalSec)
	v.SetDefault("reminder.horizon_hours", def.Reminder.HorizonHours)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, ok := err.(*os.PathError); !ok && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.DefaultView != ViewList && cfg.Display.DefaultView != ViewBoard {
		cfg.Display.DefaultView = ViewList
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = def.Cache.Size
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("server", cfg.Server)
	v.Set("storage", cfg.Storage)
	v.Set("cache", cfg.Cache)
	v.Set("display", cfg.Display)
	v.Set("notify", cfg.Notify)
	v.Set("reminder", cfg.Reminder)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Package config loads the CLI configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/mainloop"
	"github.com/seonyeopkim/asyncaction/store"
)

// Environment variables that override the file.
const (
	EnvLogLevel = "ASYNCACTION_LOG_LEVEL"
	EnvJournal  = "ASYNCACTION_DB"
	EnvMaxSteps = "ASYNCACTION_MAX_STEPS"
)

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = "asyncaction.yaml"

// Config holds all CLI configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Journal JournalConfig `yaml:"journal"`
	Demo    DemoConfig    `yaml:"demo"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StoreConfig configures every store the CLI creates.
type StoreConfig struct {
	// MaxSteps bounds a synchronous reduction chain. 0 is unlimited.
	MaxSteps int `yaml:"max_steps"`

	// MaxConcurrentTasks bounds running async tasks. 0 is unlimited.
	MaxConcurrentTasks int64 `yaml:"max_concurrent_tasks"`

	// Priority is the default dispatch priority for CLI sends.
	Priority string `yaml:"priority"`

	// AutoThreading hops CLI sends onto the main loop.
	AutoThreading bool `yaml:"auto_threading"`
}

// JournalConfig configures the dispatch journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DemoConfig configures the demo reducers.
type DemoConfig struct {
	Data  string `yaml:"data"`
	Delay string `yaml:"delay"`
	Fail  bool   `yaml:"fail"`
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging formats.
var ValidLogFormats = []string{"text", "json"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Store: StoreConfig{
			Priority:      mainloop.PriorityDefault.String(),
			AutoThreading: true,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "asyncaction.db",
		},
		Demo: DemoConfig{
			Data:  demo.DefaultData,
			Delay: "500ms",
		},
	}
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv(EnvJournal); path != "" {
		c.Journal.Path = path
		c.Journal.Enabled = true
	}
	if raw := os.Getenv(EnvMaxSteps); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxSteps, err)
		}
		c.Store.MaxSteps = n
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if !contains(ValidLogLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level: invalid level %q (valid: %v)", c.Logging.Level, ValidLogLevels))
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format: invalid format %q (valid: %v)", c.Logging.Format, ValidLogFormats))
	}
	if c.Store.MaxSteps < 0 {
		errs = append(errs, errors.New("store.max_steps: must be non-negative"))
	}
	if c.Store.MaxConcurrentTasks < 0 {
		errs = append(errs, errors.New("store.max_concurrent_tasks: must be non-negative"))
	}
	if _, err := mainloop.ParsePriority(c.Store.Priority); err != nil {
		errs = append(errs, fmt.Errorf("store.priority: %w", err))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path: required when the journal is enabled"))
	}
	if _, err := c.DemoConfig(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured level. Unknown levels map to warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Logger builds a slog.Logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StoreOptions converts the store section to store options.
func (c *Config) StoreOptions() []store.Option {
	var opts []store.Option
	if c.Store.MaxSteps > 0 {
		opts = append(opts, store.WithMaxSteps(c.Store.MaxSteps))
	}
	if c.Store.MaxConcurrentTasks > 0 {
		opts = append(opts, store.WithMaxConcurrentTasks(c.Store.MaxConcurrentTasks))
	}
	return opts
}

// DispatchOptions converts the store section to per-send options.
func (c *Config) DispatchOptions() ([]store.DispatchOption, error) {
	p, err := mainloop.ParsePriority(c.Store.Priority)
	if err != nil {
		return nil, fmt.Errorf("store.priority: %w", err)
	}
	opts := []store.DispatchOption{store.WithPriority(p)}
	if c.Store.AutoThreading {
		opts = append(opts, store.WithAutoThreading())
	}
	return opts, nil
}

// DemoConfig converts the demo section to a demo.Config.
func (c *Config) DemoConfig() (demo.Config, error) {
	cfg := demo.Config{Data: c.Demo.Data, Fail: c.Demo.Fail}
	if c.Demo.Delay != "" {
		d, err := time.ParseDuration(c.Demo.Delay)
		if err != nil {
			return demo.Config{}, fmt.Errorf("demo.delay: %w", err)
		}
		if d < 0 {
			return demo.Config{}, fmt.Errorf("demo.delay: must be non-negative, got %s", d)
		}
		cfg.Delay = d
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

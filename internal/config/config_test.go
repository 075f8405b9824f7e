package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/internal/demo"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Store.AutoThreading)
	assert.Empty(t, cfg.StoreOptions(), "defaults are unbounded")

	dc, err := cfg.DemoConfig()
	require.NoError(t, err)
	assert.Equal(t, demo.DefaultData, dc.Data)
	assert.Equal(t, 500*time.Millisecond, dc.Delay)
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvJournal, "")
	t.Setenv(EnvMaxSteps, "")
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "asyncaction.yaml")

	cfg := DefaultConfig()
	cfg.Store.MaxSteps = 25
	cfg.Store.MaxConcurrentTasks = 2
	cfg.Store.Priority = "high"
	cfg.Demo.Fail = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Len(t, loaded.StoreOptions(), 2)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "asyncaction.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\nstore:\n  max_steps: 3\n"), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Logging.Level)
	assert.Equal(t, "text", loaded.Logging.Format)
	assert.Equal(t, 3, loaded.Store.MaxSteps)
	assert.Equal(t, "asyncaction.db", loaded.Journal.Path)
	require.NoError(t, loaded.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvJournal, "/tmp/other.db")
	t.Setenv(EnvMaxSteps, "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Journal.Path)
	assert.Equal(t, 7, cfg.Store.MaxSteps)
}

func TestLoad_BadEnvOverride(t *testing.T) {
	t.Setenv(EnvMaxSteps, "many")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, EnvMaxSteps)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative steps", func(c *Config) { c.Store.MaxSteps = -1 }, "store.max_steps"},
		{"negative tasks", func(c *Config) { c.Store.MaxConcurrentTasks = -1 }, "store.max_concurrent_tasks"},
		{"bad priority", func(c *Config) { c.Store.Priority = "urgent" }, "store.priority"},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"bad delay", func(c *Config) { c.Demo.Delay = "later" }, "demo.delay"},
		{"negative delay", func(c *Config) { c.Demo.Delay = "-1s" }, "demo.delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	cfg.Store.MaxSteps = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "store.max_steps")
}

func TestDispatchOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.DispatchOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	cfg.Store.AutoThreading = false
	opts, err = cfg.DispatchOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	cfg.Store.Priority = "urgent"
	_, err = cfg.DispatchOptions()
	assert.Error(t, err)
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "info"

	cfg.Logger(&buf).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.Logger(&buf).Debug("hidden")
	assert.Empty(t, buf.String())
}

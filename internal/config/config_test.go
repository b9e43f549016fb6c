package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":42069", cfg.ListenAddr)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, "main", cfg.DefaultWorld.Name)
	assert.Equal(t, "player", cfg.DefaultWorld.PlayerTemplate)
	assert.Equal(t, 30*time.Second, cfg.PreLoginTimeout())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("NETSHELL_LOG_LEVEL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ListenAddr, cfg.ListenAddr)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv("NETSHELL_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_addr":"127.0.0.1:9000","tick_interval_ms":0,"default_world":{"startup_command_line":"motd"}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "motd", cfg.DefaultWorld.StartupCommandLine)
	// zero values fall back to defaults
	assert.Equal(t, 50, cfg.TickIntervalMillis)
	assert.Equal(t, "main", cfg.DefaultWorld.Name)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NETSHELL_LOG_LEVEL", "debug")
	t.Setenv("NETSHELL_DATABASE_PATH", "/tmp/x.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "no cert configured")

	cfg.TLS.SelfSigned = true
	assert.NoError(t, cfg.Validate())

	cfg.ListenAddr = ""
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("NETSHELL_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.LogLevel)
}

func TestWatchReloads(t *testing.T) {
	t.Setenv("NETSHELL_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, DefaultConfig().Save(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	require.NoError(t, cfg.Save(path))

	select {
	case c := <-reloaded:
		assert.Equal(t, "debug", c.LogLevel)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}

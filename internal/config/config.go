package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/codefionn/netshell/internal/consts"
)

// TLSConfig holds the server certificate configuration
type TLSConfig struct {
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	SelfSigned bool   `json:"self_signed"` // generate an ephemeral cert, for development only
}

// WorldConfig describes the world that is created when the database has none
type WorldConfig struct {
	Name               string `json:"name"`
	PlayerTemplate     string `json:"player_template"`
	StartupCommandLine string `json:"startup_command_line"`
}

// Config represents server configuration
type Config struct {
	ListenAddr          string      `json:"listen_addr"`
	WebSocketAddr       string      `json:"websocket_addr,omitempty"` // empty disables the websocket transport
	TLS                 TLSConfig   `json:"tls"`
	DatabasePath        string      `json:"database_path"`
	TemplateDir         string      `json:"template_dir,omitempty"` // empty uses the built-in templates
	TickIntervalMillis  int         `json:"tick_interval_ms"`
	MaxConnections      int         `json:"max_connections"`
	PreLoginTimeoutSec  int         `json:"pre_login_timeout_seconds"`
	PostLoginTimeoutSec int         `json:"post_login_timeout_seconds"`
	LogLevel            string      `json:"log_level"` // debug, info, warn, error, none
	LogPath             string      `json:"log_path,omitempty"`
	PprofAddr           string      `json:"pprof_addr,omitempty"`
	DefaultWorld        WorldConfig `json:"default_world"`
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "netshell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "netshell")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "netshell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "netshell")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "netshell")
	}
}

func defaultConfigDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "netshell")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "netshell")
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:          consts.DefaultListenAddr,
		DatabasePath:        filepath.Join(defaultStateDir(), "netshell.db"),
		TickIntervalMillis:  int(consts.DefaultTickInterval / time.Millisecond),
		MaxConnections:      consts.DefaultMaxConnections,
		PreLoginTimeoutSec:  int(consts.PreLoginReadTimeout / time.Second),
		PostLoginTimeoutSec: int(consts.PostLoginReadTimeout / time.Second),
		LogLevel:            "info",
		DefaultWorld: WorldConfig{
			Name:           "main",
			PlayerTemplate: "player",
		},
	}
}

// Load loads configuration from file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.TickIntervalMillis <= 0 {
		c.TickIntervalMillis = def.TickIntervalMillis
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = def.MaxConnections
	}
	if c.PreLoginTimeoutSec <= 0 {
		c.PreLoginTimeoutSec = def.PreLoginTimeoutSec
	}
	if c.PostLoginTimeoutSec <= 0 {
		c.PostLoginTimeoutSec = def.PostLoginTimeoutSec
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.DefaultWorld.Name == "" {
		c.DefaultWorld.Name = def.DefaultWorld.Name
	}
	if c.DefaultWorld.PlayerTemplate == "" {
		c.DefaultWorld.PlayerTemplate = def.DefaultWorld.PlayerTemplate
	}
}

// ApplyEnv lets NETSHELL_* environment variables override file values.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("NETSHELL_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("NETSHELL_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("NETSHELL_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("NETSHELL_DATABASE_PATH")); v != "" {
		c.DatabasePath = v
	}
}

// Validate reports configuration that cannot start a server.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if !c.TLS.SelfSigned && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required unless tls.self_signed is set")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	return nil
}

// TickInterval returns the configured tick interval
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMillis) * time.Millisecond
}

// PreLoginTimeout returns the idle timeout for unauthenticated sessions
func (c *Config) PreLoginTimeout() time.Duration {
	return time.Duration(c.PreLoginTimeoutSec) * time.Second
}

// PostLoginTimeout returns the idle timeout for authenticated sessions
func (c *Config) PostLoginTimeout() time.Duration {
	return time.Duration(c.PostLoginTimeoutSec) * time.Second
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("NETSHELL_CONFIG")); v != "" {
		return v
	}
	return filepath.Join(defaultConfigDir(), "config.json")
}

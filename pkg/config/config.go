/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the refreshwal configuration
type Config struct {
	DataDir  string            `yaml:"data_dir"`
	WAL      WAL               `yaml:"wal"`
	Session  Session           `yaml:"session"`
	Roles    map[uint32]string `yaml:"roles"`
	Decoding Decoding          `yaml:"decoding"`
	Server   Server            `yaml:"server"`
	Logging  Logging           `yaml:"logging"`
}

// WAL contains log file configuration
type WAL struct {
	FileName      string        `yaml:"file_name"`
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Session holds the producer context records are emitted under
type Session struct {
	DatabaseID uint32 `yaml:"database_id"`
	SearchPath string `yaml:"search_path"`
	Role       uint32 `yaml:"role"`
	Origin     uint16 `yaml:"origin"`
}

// Decoding contains logical decoding configuration
type Decoding struct {
	Slot        string   `yaml:"slot"`
	OnlyLocal   bool     `yaml:"only_local"`
	SkipOrigins []uint16 `yaml:"skip_origins,omitempty"`
}

// Server contains inspection server configuration
type Server struct {
	Bind   string `yaml:"bind"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		WAL: WAL{
			FileName:      "refresh.wal",
			FsyncInterval: 0,
			BufferSize:    64 * 1024,
		},
		Session: Session{
			DatabaseID: 16384,
			SearchPath: `"$user", public`,
			Role:       10,
		},
		Roles: map[uint32]string{
			10: "postgres",
		},
		Decoding: Decoding{
			Slot: "refreshwal",
		},
		Server: Server{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// WALPath is the log file location inside the data directory
func (c *Config) WALPath() string {
	return filepath.Join(c.DataDir, c.WAL.FileName)
}

// EventsPath is the event archive location inside the data directory
func (c *Config) EventsPath() string {
	return filepath.Join(c.DataDir, "events")
}

// Validate checks the fields the commands rely on
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	case c.WAL.FileName == "" || filepath.Base(c.WAL.FileName) != c.WAL.FileName:
		return fmt.Errorf("%w: wal.file_name must be a plain file name, got %q", ErrInvalidConfig, c.WAL.FileName)
	case c.WAL.FsyncInterval < 0:
		return fmt.Errorf("%w: wal.fsync_interval must not be negative", ErrInvalidConfig)
	case c.WAL.BufferSize < 0:
		return fmt.Errorf("%w: wal.buffer_size must not be negative", ErrInvalidConfig)
	case c.Decoding.Slot == "":
		return fmt.Errorf("%w: decoding.slot is required", ErrInvalidConfig)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset fields keep their defaults
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration rooted at dataDir
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	// Use OS-specific default locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./refreshwal.yaml"
	}

	// For Linux/macOS, use ~/.config/refreshwal/config.yaml
	configDir := filepath.Join(homeDir, ".config", "refreshwal")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

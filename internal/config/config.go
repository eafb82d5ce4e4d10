package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "easyip"
	configFile = "config.yaml"

	// Storage backends
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

var (
	// Global config instance (loaded lazily)
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigErr  error

	// Mutex for thread-safe file operations
	fileMutex sync.Mutex
)

// Config is the persisted application configuration.
type Config struct {
	Version   int              `yaml:"version"`
	Storage   *StorageConfig   `yaml:"storage"`
	Discovery *DiscoveryConfig `yaml:"discovery"`
	Tracking  *TrackingConfig  `yaml:"tracking"`
	Server    *ServerConfig    `yaml:"server"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `yaml:"backend"`

	// Path overrides the default data file location. Empty means the
	// per-OS data directory.
	Path string `yaml:"path,omitempty"`
}

// DiscoveryConfig tunes the broadcast scan.
type DiscoveryConfig struct {
	// Interface is the local IP to bind, or "0.0.0.0" for all.
	Interface string `yaml:"interface"`

	// TimeoutSeconds is the response-collection window.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// TrackingConfig tunes status derivation.
type TrackingConfig struct {
	// MissingThresholdHours separates offline from missing.
	MissingThresholdHours int `yaml:"missing_threshold_hours"`
}

// ServerConfig tunes the web server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// AutoScan enables scheduled background scans.
	AutoScan bool `yaml:"auto_scan"`

	// AutoScanInterval is a cron-style duration string, e.g. "5m".
	AutoScanInterval string `yaml:"auto_scan_interval"`
}

// NewConfig returns a config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: &StorageConfig{
			Backend: BackendJSON,
		},
		Discovery: &DiscoveryConfig{
			Interface:      "0.0.0.0",
			TimeoutSeconds: 3,
		},
		Tracking: &TrackingConfig{
			MissingThresholdHours: 24,
		},
		Server: &ServerConfig{
			ListenAddr:       ":8089",
			AutoScan:         true,
			AutoScanInterval: "5m",
		},
	}
}

// Timeout returns the discovery window as a duration.
func (c *Config) Timeout() time.Duration {
	if c.Discovery == nil || c.Discovery.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Discovery.TimeoutSeconds) * time.Second
}

// MissingThreshold returns the offline-to-missing cutoff as a duration.
func (c *Config) MissingThreshold() time.Duration {
	if c.Tracking == nil || c.Tracking.MissingThresholdHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Tracking.MissingThresholdHours) * time.Hour
}

// DataPath returns the device data file location for the configured
// backend, honoring the path override.
func (c *Config) DataPath() (string, error) {
	if c.Storage != nil && c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	name := "devices.json"
	if c.Storage != nil && c.Storage.Backend == BackendSQLite {
		name = "devices.db"
	}
	return filepath.Join(dir, name), nil
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/easyip or $HOME/.config/easyip
//   - macOS: $HOME/.config/easyip
//   - Windows: %LOCALAPPDATA%\easyip
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load loads the configuration from disk. A missing file yields the
// defaults. Thread-safe; repeated calls return the same instance.
func Load() (*Config, error) {
	globalConfigOnce.Do(func() {
		globalConfig, globalConfigErr = loadFromDisk()
	})
	return globalConfig, globalConfigErr
}

func loadFromDisk() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return NewConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	// Fill in sections an older or hand-edited file omits
	defaults := NewConfig()
	if cfg.Storage == nil {
		cfg.Storage = defaults.Storage
	}
	if cfg.Discovery == nil {
		cfg.Discovery = defaults.Discovery
	}
	if cfg.Tracking == nil {
		cfg.Tracking = defaults.Tracking
	}
	if cfg.Server == nil {
		cfg.Server = defaults.Server
	}

	return &cfg, nil
}

// Save writes the configuration to disk atomically.
func (c *Config) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Easy IP Configuration File
#
# storage.backend selects the persistence layer: "json" keeps a single
# snapshot file, "sqlite" keeps a database better suited to large
# fleets and long IP histories.
#
# Location: ` + configPath + `

`)
	data = append(header, data...)

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Reload re-reads the configuration from disk, discarding the cached
// instance. Useful after another process edited the file.
func Reload() (*Config, error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	globalConfigOnce = sync.Once{}
	return Load()
}

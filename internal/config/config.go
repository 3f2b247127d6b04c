package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	FileName  = "mmmmm"
	EnvPrefix = "MMMMM"

	DefaultPort       = 25566
	DefaultMaxWorkers = 16
	DefaultModsDir    = "mods"
	DefaultConfigDir  = "config"
	DefaultStateDir   = "MMMMM"
	DefaultSharedDir  = "MMMMM/shared-files"
	DefaultTimeout    = 5 * time.Second
	DefaultDebounce   = 500 * time.Millisecond
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Publish PublishConfig `mapstructure:"publish"`
}

// ServerConfig controls the distribution server.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Root        string `mapstructure:"root"`
	MaxWorkers  int    `mapstructure:"max_workers"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables /metrics
}

// ClientConfig controls update runs.
type ClientConfig struct {
	UpdateConfig   bool          `mapstructure:"update_config"`
	TrustConfigDir bool          `mapstructure:"trust_config_dir"` // digest the live config dir instead of archive entries
	ModsDir        string        `mapstructure:"mods_dir"`
	ConfigDir      string        `mapstructure:"config_dir"`
	StateDir       string        `mapstructure:"state_dir"`
	SharedDir      string        `mapstructure:"shared_dir"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CurrentVersion string        `mapstructure:"current_version"`
	SelfID         string        `mapstructure:"self_id"`
}

// PublishConfig controls bundle building on the server.
type PublishConfig struct {
	ModsDir   string        `mapstructure:"mods_dir"`
	ConfigDir string        `mapstructure:"config_dir"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       DefaultPort,
			Root:       DefaultSharedDir,
			MaxWorkers: DefaultMaxWorkers,
		},
		Client: ClientConfig{
			UpdateConfig: true,
			ModsDir:      DefaultModsDir,
			ConfigDir:    DefaultConfigDir,
			StateDir:     DefaultStateDir,
			SharedDir:    DefaultSharedDir,
			Timeout:      DefaultTimeout,
			SelfID:       "mmmmm",
		},
		Publish: PublishConfig{
			ModsDir:   DefaultModsDir,
			ConfigDir: DefaultConfigDir,
			Debounce:  DefaultDebounce,
		},
	}
}

// Loader reads configuration from an optional file plus MMMMM_* environment
// variables, and can watch the file for changes.
type Loader struct {
	v *viper.Viper

	mu      sync.Mutex
	current *Config
}

// NewLoader searches instanceDir and the user config directory for
// mmmmm.{yaml,toml,json}. A non-empty path selects the file explicitly.
func NewLoader(instanceDir, path string) *Loader {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.root", d.Server.Root)
	v.SetDefault("server.max_workers", d.Server.MaxWorkers)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("client.update_config", d.Client.UpdateConfig)
	v.SetDefault("client.trust_config_dir", d.Client.TrustConfigDir)
	v.SetDefault("client.mods_dir", d.Client.ModsDir)
	v.SetDefault("client.config_dir", d.Client.ConfigDir)
	v.SetDefault("client.state_dir", d.Client.StateDir)
	v.SetDefault("client.shared_dir", d.Client.SharedDir)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.current_version", d.Client.CurrentVersion)
	v.SetDefault("client.self_id", d.Client.SelfID)
	v.SetDefault("publish.mods_dir", d.Publish.ModsDir)
	v.SetDefault("publish.config_dir", d.Publish.ConfigDir)
	v.SetDefault("publish.debounce", d.Publish.Debounce)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		if instanceDir != "" {
			v.AddConfigPath(instanceDir)
		}
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, FileName))
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads the configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(l.v.ConfigFileUsed() != "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Server.MaxWorkers < 1 {
		cfg.Server.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = DefaultTimeout
	}
	if cfg.Publish.Debounce <= 0 {
		cfg.Publish.Debounce = DefaultDebounce
	}
	return cfg, nil
}

// ConfigFile returns the file in use, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the reloaded configuration each time the config
// file is written. Reload errors are passed to onError and leave the previous
// configuration in place. Watch does nothing when no file is in use.
func (l *Loader) Watch(onChange func(old, updated *Config), onError func(error)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		l.mu.Lock()
		old := l.current
		l.current = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(old, cfg)
		}
	})
	l.v.WatchConfig()
	return true
}

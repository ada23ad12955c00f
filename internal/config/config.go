package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Poll     PollConfig     `mapstructure:"poll" yaml:"poll"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Watcher  WatcherConfig  `mapstructure:"watcher" yaml:"watcher"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// BackendConfig locates the accio backend.
type BackendConfig struct {
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	StaticURL      string        `mapstructure:"static_url" yaml:"static_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PollConfig controls the task poll loop.
type PollConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	BackoffEnabled bool          `mapstructure:"backoff_enabled" yaml:"backoff_enabled"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HistoryConfig controls the task event journal.
type HistoryConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	RetentionDays int  `mapstructure:"retention_days" yaml:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// WatcherConfig controls the link inbox.
type WatcherConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	Inbox            string        `mapstructure:"inbox" yaml:"inbox"`
	SupportedDomains []string      `mapstructure:"supported_domains" yaml:"supported_domains"`
	Debounce         time.Duration `mapstructure:"debounce" yaml:"debounce"`
	RetryInterval    time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Backend: BackendConfig{
			APIURL:         "http://localhost:8000/api/v1",
			StaticURL:      "http://localhost:8000",
			RequestTimeout: 30 * time.Second,
		},
		Poll: PollConfig{
			Interval:       3 * time.Second,
			RequestTimeout: 9 * time.Second,
			BackoffEnabled: false,
			MaxBackoff:     60 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/accio.db",
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Path:       "./data/logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Watcher: WatcherConfig{
			Enabled:          false,
			Inbox:            "./data/inbox",
			SupportedDomains: []string{"bilibili.com", "douyin.com", "tiktok.com", "x.com", "twitter.com"},
			Debounce:         500 * time.Millisecond,
			RetryInterval:    time.Minute,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.accio")
	}

	v.SetEnvPrefix("ACCIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults mirrors Default into viper so every key is known to AutomaticEnv.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("backend.api_url", d.Backend.APIURL)
	v.SetDefault("backend.static_url", d.Backend.StaticURL)
	v.SetDefault("backend.request_timeout", d.Backend.RequestTimeout)

	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.request_timeout", d.Poll.RequestTimeout)
	v.SetDefault("poll.backoff_enabled", d.Poll.BackoffEnabled)
	v.SetDefault("poll.max_backoff", d.Poll.MaxBackoff)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.retention_days", d.History.RetentionDays)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("watcher.enabled", d.Watcher.Enabled)
	v.SetDefault("watcher.inbox", d.Watcher.Inbox)
	v.SetDefault("watcher.supported_domains", d.Watcher.SupportedDomains)
	v.SetDefault("watcher.debounce", d.Watcher.Debounce)
	v.SetDefault("watcher.retry_interval", d.Watcher.RetryInterval)
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	if c.Backend.APIURL == "" {
		return errors.New("backend.api_url must be set")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.RequestTimeout < 0 || c.Poll.MaxBackoff < 0 {
		return errors.New("poll timeouts must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Watcher.Enabled && c.Watcher.Inbox == "" {
		return errors.New("watcher.inbox must be set when the watcher is enabled")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file
const (
	EnvURL         = "RANGE_URL"
	EnvJournalPath = "RANGE_JOURNAL_PATH"
	EnvNATSURL     = "RANGE_NATS_URL"
	EnvMetricsAddr = "RANGE_METRICS_ADDR"
)

// Config holds the application configuration
type Config struct {
	Range   RangeConfig   `yaml:"range"`
	Client  ClientConfig  `yaml:"client"`
	Journal JournalConfig `yaml:"journal"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RangeConfig locates the range server
type RangeConfig struct {
	// URL is the page origin; the real-time endpoint is derived from it
	URL    string `yaml:"url"`
	WSPath string `yaml:"ws_path"`
}

// ClientConfig holds sync client tuning
type ClientConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	FeedSize       int           `yaml:"feed_size"`
	ReadLimit      int64         `yaml:"read_limit"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// JournalConfig holds SQLite journal settings. An empty path disables it.
type JournalConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// NATSConfig holds update republishing settings. An empty URL disables it
// unless Embedded is set.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Prefix   string `yaml:"prefix"`
	Embedded bool   `yaml:"embedded"`
	Port     int    `yaml:"port"`
}

// MetricsConfig holds the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads configuration from a YAML file. A missing file is allowed
// when path is empty; environment overrides apply either way.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv reads a .env file into the process environment without
// replacing variables that are already set
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.Range.URL = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

func (cfg *Config) setDefaults() {
	if cfg.Range.URL == "" {
		cfg.Range.URL = "http://127.0.0.1:8000"
	}
	cfg.Range.URL = strings.TrimRight(cfg.Range.URL, "/")
	if cfg.Range.WSPath == "" {
		cfg.Range.WSPath = "/ws"
	}
	if cfg.Client.ReconnectDelay == 0 {
		cfg.Client.ReconnectDelay = time.Second
	}
	if cfg.Client.FeedSize == 0 {
		cfg.Client.FeedSize = 200
	}
	if cfg.Client.ReadLimit == 0 {
		cfg.Client.ReadLimit = 4 << 20
	}
	// Note: ReadTimeout and CommandTimeout intentionally default to zero - no deadline
	if cfg.Journal.Retention == 0 {
		cfg.Journal.Retention = 7 * 24 * time.Hour
	}
	if cfg.NATS.Prefix == "" {
		cfg.NATS.Prefix = "range"
	}
	if cfg.NATS.Port == 0 {
		cfg.NATS.Port = 4222
	}
}

// Validate rejects settings the client cannot run with
func (cfg *Config) Validate() error {
	if !strings.HasPrefix(cfg.Range.URL, "http://") && !strings.HasPrefix(cfg.Range.URL, "https://") {
		return fmt.Errorf("range url %q must start with http:// or https://", cfg.Range.URL)
	}
	if cfg.Client.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect_delay must not be negative")
	}
	if cfg.Client.FeedSize < 0 {
		return fmt.Errorf("feed_size must not be negative")
	}
	if cfg.Client.ReadTimeout < 0 || cfg.Client.CommandTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

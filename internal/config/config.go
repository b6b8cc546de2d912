// Package config loads and validates the client configuration from YAML.
// Base REST and push-channel endpoints are resolved once at startup; there
// is no runtime renegotiation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete client configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Debug    DebugConfig    `yaml:"debug"`
	DevMode  bool           `yaml:"dev_mode"` // enables the serializability guard
}

// APIConfig configures the auth REST client.
type APIConfig struct {
	BaseURL   string  `yaml:"base_url"`
	TimeoutMS int     `yaml:"timeout_ms"` // bound on login/refresh/me calls
	LoginRPS  float64 `yaml:"login_rps"`  // rate limit on credential submissions
	Burst     int     `yaml:"burst"`
}

// RealtimeConfig configures the push channel.
type RealtimeConfig struct {
	URL                string        `yaml:"url"`
	HandshakeTimeoutMS int           `yaml:"handshake_timeout_ms"`
	ReadTimeoutMS      int           `yaml:"read_timeout_ms"`
	PingIntervalMS     int           `yaml:"ping_interval_ms"`
	BackoffMS          BackoffConfig `yaml:"backoff_ms"`
}

// BackoffConfig represents exponential backoff configuration in milliseconds.
type BackoffConfig struct {
	Base   int  `yaml:"base"`   // First retry delay
	Max    int  `yaml:"max"`    // Delay cap
	Jitter bool `yaml:"jitter"` // Randomize to avoid synchronized retry storms
}

// StorageConfig selects the durable storage backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // memory | file | redis | postgres
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AuthConfig holds session behavior knobs.
type AuthConfig struct {
	RotateRefreshToken bool `yaml:"rotate_refresh_token"`
}

// DebugConfig configures the optional local metrics/health listener.
type DebugConfig struct {
	ListenAddr string `yaml:"listen_addr"` // empty disables the listener
}

// Load reads configuration from a YAML file, applies environment overrides
// and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FLOWEX_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("FLOWEX_WS_URL"); v != "" {
		c.Realtime.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.Backend = "redis"
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.Backend = "postgres"
		c.Storage.PostgresDSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.TimeoutMS == 0 {
		c.API.TimeoutMS = 10000
	}
	if c.API.LoginRPS == 0 {
		c.API.LoginRPS = 1.0
	}
	if c.API.Burst == 0 {
		c.API.Burst = 3
	}
	if c.Realtime.URL == "" {
		c.Realtime.URL = "ws://localhost:8080/ws"
	}
	if c.Realtime.HandshakeTimeoutMS == 0 {
		c.Realtime.HandshakeTimeoutMS = 15000
	}
	if c.Realtime.ReadTimeoutMS == 0 {
		c.Realtime.ReadTimeoutMS = 60000
	}
	if c.Realtime.PingIntervalMS == 0 {
		c.Realtime.PingIntervalMS = 30000
	}
	if c.Realtime.BackoffMS.Base == 0 {
		c.Realtime.BackoffMS.Base = 1000
	}
	if c.Realtime.BackoffMS.Max == 0 {
		c.Realtime.BackoffMS.Max = 30000
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaultStateDir()
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "file":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("config: redis backend requires redis_addr")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres backend requires postgres_dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Realtime.BackoffMS.Base > c.Realtime.BackoffMS.Max {
		return fmt.Errorf("config: backoff base %dms exceeds max %dms",
			c.Realtime.BackoffMS.Base, c.Realtime.BackoffMS.Max)
	}
	if c.API.TimeoutMS < 0 || c.Realtime.HandshakeTimeoutMS < 0 {
		return fmt.Errorf("config: negative timeout")
	}
	return nil
}

// APITimeout returns the bound applied to every auth HTTP call.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// BackoffBase returns the first reconnect delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Realtime.BackoffMS.Base) * time.Millisecond
}

// BackoffMax returns the reconnect delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Realtime.BackoffMS.Max) * time.Millisecond
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowex"
	}
	return home + string(os.PathSeparator) + ".flowex"
}

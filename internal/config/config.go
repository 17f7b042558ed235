package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Demo      DemoConfig
	Compiler  CompilerConfig
	Paths     PathsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Frame hosts for iframe demos.
const (
	FrameHostLocal = "local"
	FrameHostRelay = "relay"
)

// DemoConfig holds live demo execution settings.
type DemoConfig struct {
	ThrottleWait   time.Duration `envconfig:"DEMO_THROTTLE_WAIT" default:"500ms"`
	BridgeTimeout  time.Duration `envconfig:"DEMO_BRIDGE_TIMEOUT" default:"0s"`
	SandboxTimeout time.Duration `envconfig:"DEMO_SANDBOX_TIMEOUT" default:"5s"`
	Dir            string        `envconfig:"DEMO_DIR"`
	FrameHost      string        `envconfig:"DEMO_FRAME_HOST" default:"local"`
}

// CompilerConfig holds the remote compile service settings. An empty URL
// evaluates demo sources as-is.
type CompilerConfig struct {
	URL     string        `envconfig:"COMPILER_URL"`
	Retries int           `envconfig:"COMPILER_RETRIES" default:"2"`
	Timeout time.Duration `envconfig:"COMPILER_TIMEOUT" default:"10s"`

	// Consecutive outages before compiles fail fast, and for how long
	BreakerFailures int           `envconfig:"COMPILER_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"COMPILER_BREAKER_COOLDOWN" default:"30s"`
}

// PathsConfig holds the project layout inputs.
type PathsConfig struct {
	Cwd        string `envconfig:"APP_CWD"`
	Env        string `envconfig:"APP_ENV" default:"development"`
	ConfigFile string `envconfig:"APP_CONFIG_FILE"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch c.Demo.FrameHost {
	case FrameHostLocal, FrameHostRelay:
	default:
		return fmt.Errorf("invalid DEMO_FRAME_HOST %q: want %s or %s", c.Demo.FrameHost, FrameHostLocal, FrameHostRelay)
	}
	if c.Demo.ThrottleWait < 0 {
		return fmt.Errorf("invalid DEMO_THROTTLE_WAIT %s: must not be negative", c.Demo.ThrottleWait)
	}
	if c.Demo.BridgeTimeout < 0 {
		return fmt.Errorf("invalid DEMO_BRIDGE_TIMEOUT %s: must not be negative", c.Demo.BridgeTimeout)
	}
	if c.Compiler.Retries < 0 {
		return fmt.Errorf("invalid COMPILER_RETRIES %d", c.Compiler.Retries)
	}
	if c.Compiler.BreakerFailures < 1 {
		return fmt.Errorf("invalid COMPILER_BREAKER_FAILURES %d: must be at least 1", c.Compiler.BreakerFailures)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Demo: DemoConfig{
			ThrottleWait:   500 * time.Millisecond,
			SandboxTimeout: 5 * time.Second,
			FrameHost:      FrameHostLocal,
		},
		Compiler: CompilerConfig{
			Retries:         2,
			Timeout:         10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Paths: PathsConfig{
			Env: "development",
		},
	}
}

// Package server provides configuration helpers that define runtime defaults,
// file and environment loading, validation, and rate-limiting parameters for
// the GoChat relay.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/Tyrowin/gochat/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultPort = ":8080"
	// defaultMaxFileSize is the decoded payload limit for file messages.
	defaultMaxFileSize = 20 << 20
	// defaultMaxMessageSize admits a base64 data URI of defaultMaxFileSize
	// (4/3 expansion) plus the surrounding JSON.
	defaultMaxMessageSize = 28 << 20
	defaultSendBufferSize = 256
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `toml:"burst" validate:"gt=0"`
	RefillInterval time.Duration `toml:"refill_interval" validate:"gt=0"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `toml:"port" validate:"required"`
	AllowedOrigins []string        `toml:"allowed_origins"`
	MaxMessageSize int64           `toml:"max_message_size" validate:"gt=0"`
	MaxFileSize    int64           `toml:"max_file_size" validate:"gt=0"`
	SendBufferSize int             `toml:"send_buffer_size" validate:"gt=0"`
	RateLimit      RateLimitConfig `toml:"rate_limit"`
	Store          store.Config    `toml:"store"`
	LogLevel       string          `toml:"log_level" validate:"oneof=debug info warn error"`
}

// envOverrides lists the environment variables that override file settings.
// Unset variables leave the field nil.
type envOverrides struct {
	Port                   *string `env:"SERVER_PORT"`
	AllowedOrigins         *string `env:"ALLOWED_ORIGINS"`
	MaxMessageSize         *int64  `env:"MAX_MESSAGE_SIZE"`
	MaxFileSize            *int64  `env:"MAX_FILE_SIZE"`
	SendBufferSize         *int    `env:"SEND_BUFFER_SIZE"`
	RateLimitBurst         *int    `env:"RATE_LIMIT_BURST"`
	RateLimitRefillSeconds *int    `env:"RATE_LIMIT_REFILL_INTERVAL"`
	StoreDriver            *string `env:"STORE_DRIVER"`
	StorePath              *string `env:"STORE_PATH"`
	LogLevel               *string `env:"LOG_LEVEL"`
}

var configValidator = validator.New()

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		MaxFileSize:    defaultMaxFileSize,
		SendBufferSize: defaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Store: store.Config{
			Driver: store.DriverBadger,
			Path:   store.DefaultPath,
		},
		LogLevel: "info",
	}
}

// LoadConfig builds the configuration from, in increasing precedence: the
// defaults, the TOML file at path (skipped when path is empty or missing), a
// .env file in the working directory, and the process environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var overrides envOverrides
	if _, err := env.UnmarshalFromEnviron(&overrides); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg = overrides.apply(cfg)

	cfg = cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (o envOverrides) apply(cfg Config) Config {
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.AllowedOrigins != nil {
		cfg.AllowedOrigins = parseOrigins(*o.AllowedOrigins)
	}
	if o.MaxMessageSize != nil {
		cfg.MaxMessageSize = *o.MaxMessageSize
	}
	if o.MaxFileSize != nil {
		cfg.MaxFileSize = *o.MaxFileSize
	}
	if o.SendBufferSize != nil {
		cfg.SendBufferSize = *o.SendBufferSize
	}
	if o.RateLimitBurst != nil {
		cfg.RateLimit.Burst = *o.RateLimitBurst
	}
	if o.RateLimitRefillSeconds != nil {
		cfg.RateLimit.RefillInterval = time.Duration(*o.RateLimitRefillSeconds) * time.Second
	}
	if o.StoreDriver != nil {
		cfg.Store.Driver = *o.StoreDriver
	}
	if o.StorePath != nil {
		cfg.Store.Path = *o.StorePath
	}
	if o.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(*o.LogLevel)
	}
	return cfg
}

// Sanitize replaces unset or non-positive values with defaults and
// normalizes the port and origin list.
func (c Config) Sanitize() Config {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}

	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}

	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}

	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverBadger
		if c.Store.Path == "" {
			c.Store.Path = store.DefaultPath
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// Validate reports settings that Sanitize cannot repair, such as an unknown
// store driver or log level.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

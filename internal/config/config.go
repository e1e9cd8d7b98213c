// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// CAS backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config holds the settings shared by every command.
type Config struct {
	DB            string        `env:"WAYPATH_DB,strict"`
	Addr          string        `env:"WAYPATH_ADDR,strict"`
	Owner         string        `env:"WAYPATH_OWNER,strict"`
	CASBackend    string        `env:"WAYPATH_CAS_BACKEND,strict"`
	BoltPath      string        `env:"WAYPATH_BOLT_PATH,strict"`
	MaxDepth      int           `env:"WAYPATH_MAX_DEPTH,strict"`
	MaxAliasHops  int           `env:"WAYPATH_MAX_ALIAS_HOPS,strict"`
	ScriptTimeout time.Duration `env:"WAYPATH_SCRIPT_TIMEOUT,strict"`
	RateLimit     float64       `env:"WAYPATH_RATE_LIMIT,strict"`
	RateBurst     int           `env:"WAYPATH_RATE_BURST,strict"`
	CompressMin   int           `env:"WAYPATH_COMPRESS_MIN,strict"`
	LogFormat     string        `env:"WAYPATH_LOG_FORMAT,strict"`

	// ReadTimeout and WriteTimeout bound each HTTP request on the server.
	ReadTimeout  time.Duration `env:"WAYPATH_READ_TIMEOUT,strict"`
	WriteTimeout time.Duration `env:"WAYPATH_WRITE_TIMEOUT,strict"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:            "./waypath.db",
		Addr:          ":8080",
		Owner:         "default",
		CASBackend:    BackendSQLite,
		BoltPath:      "./waypath-cas.bolt",
		MaxDepth:      16,
		MaxAliasHops:  8,
		ScriptTimeout: 5 * time.Second,
		RateLimit:     0,
		RateBurst:     20,
		CompressMin:   4096,
		LogFormat:     "text",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
	}
}

// Load reads the optional dotenv files, then overlays WAYPATH_* variables
// onto Default. Missing dotenv files are ignored; malformed ones are not.
// Variables already set in the process environment win over dotenv values.
func Load(dotenv ...string) (Config, error) {
	for _, path := range dotenv {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	switch c.CASBackend {
	case BackendSQLite, BackendBolt, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("WAYPATH_CAS_BACKEND: unknown backend %q (want %s, %s or %s)",
			c.CASBackend, BackendSQLite, BackendBolt, BackendMemory))
	}
	if c.Owner == "" {
		errs = append(errs, errors.New("WAYPATH_OWNER: must not be empty"))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("WAYPATH_MAX_DEPTH: must be positive, got %d", c.MaxDepth))
	}
	if c.MaxAliasHops < 1 {
		errs = append(errs, fmt.Errorf("WAYPATH_MAX_ALIAS_HOPS: must be positive, got %d", c.MaxAliasHops))
	}
	if c.ScriptTimeout < 0 {
		errs = append(errs, fmt.Errorf("WAYPATH_SCRIPT_TIMEOUT: must not be negative, got %s", c.ScriptTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("WAYPATH_RATE_LIMIT: must not be negative, got %g", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("WAYPATH_RATE_BURST: must be positive when rate limiting, got %d", c.RateBurst))
	}
	if c.CompressMin < 0 {
		errs = append(errs, fmt.Errorf("WAYPATH_COMPRESS_MIN: must not be negative, got %d", c.CompressMin))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("WAYPATH_READ_TIMEOUT: must be positive, got %s", c.ReadTimeout))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("WAYPATH_WRITE_TIMEOUT: must be positive, got %s", c.WriteTimeout))
	} else if c.ScriptTimeout > 0 && c.WriteTimeout <= c.ScriptTimeout {
		errs = append(errs, fmt.Errorf("WAYPATH_WRITE_TIMEOUT: must exceed WAYPATH_SCRIPT_TIMEOUT (%s), got %s", c.ScriptTimeout, c.WriteTimeout))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("WAYPATH_LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

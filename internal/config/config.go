// Package config loads the samediff configuration file and environment
// overrides. File values are defaults; command-line flags win over both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/logger"
)

// Environment variables.
const (
	EnvConfig   = "SAMEDIFF_CONFIG"    // config file path
	EnvLogLevel = "SAMEDIFF_LOG_LEVEL" // debug, info, warn, error
	EnvDevice   = "SAMEDIFF_DEVICE"    // execution device, "cpu"
)

// Config represents the samediff configuration file (~/.config/samediff/config.yaml).
// Numeric fields are pointers so "not set" differs from zero.
type Config struct {
	Device    string `yaml:"device"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	// Gradient check defaults
	Epsilon          *float64 `yaml:"epsilon"`
	MaxRelError      *float64 `yaml:"max_rel_error"`
	MinAbsError      *float64 `yaml:"min_abs_error"`
	ForwardTolerance *float64 `yaml:"forward_tolerance"`
	MaxReported      *int     `yaml:"max_reported"`

	// Suite runner
	Seed        *uint64 `yaml:"seed"`
	Parallelism *int    `yaml:"parallelism"`
}

// Var returns an environment variable stripped of whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Path returns the config file location: $SAMEDIFF_CONFIG, else the user
// config directory. It is empty when neither can be determined.
func Path() string {
	if p := Var(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "samediff", "config.yaml")
}

// Load reads the file at Path and applies environment overrides. A missing
// file yields the zero Config; a malformed one is an error.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the file at path and applies environment overrides.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if cfg, err = Parse(data); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}
	cfg = cfg.withEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML config data. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withEnv() Config {
	if v := Var(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := Var(EnvDevice); v != "" {
		c.Device = v
	}
	return c
}

// Validate rejects settings no command could use.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log_format %q: want text or json", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	for name, v := range map[string]*float64{
		"epsilon":           c.Epsilon,
		"max_rel_error":     c.MaxRelError,
		"min_abs_error":     c.MinAbsError,
		"forward_tolerance": c.ForwardTolerance,
	} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("config: %s must be positive, got %g", name, *v)
		}
	}
	if c.MaxReported != nil && *c.MaxReported <= 0 {
		return fmt.Errorf("config: max_reported must be positive, got %d", *c.MaxReported)
	}
	if c.Parallelism != nil && *c.Parallelism < 0 {
		return fmt.Errorf("config: parallelism must not be negative, got %d", *c.Parallelism)
	}
	return nil
}

// GradCheck returns the gradient check settings, defaults filled in.
func (c Config) GradCheck() gradcheck.Config {
	cfg := gradcheck.DefaultConfig()
	if c.Epsilon != nil {
		cfg.Epsilon = *c.Epsilon
	}
	if c.MaxRelError != nil {
		cfg.MaxRelError = *c.MaxRelError
	}
	if c.MinAbsError != nil {
		cfg.MinAbsError = *c.MinAbsError
	}
	if c.ForwardTolerance != nil {
		cfg.ForwardTolerance = *c.ForwardTolerance
	}
	if c.MaxReported != nil {
		cfg.MaxReported = *c.MaxReported
	}
	return cfg
}

// Logger builds the configured logger writing to w. The level defaults to info.
func (c Config) Logger(w io.Writer) logger.Logger {
	level := slog.LevelInfo
	if c.LogLevel != "" {
		level = logger.ParseLevel(c.LogLevel)
	}
	if strings.EqualFold(c.LogFormat, "json") {
		return logger.JSON(w, level)
	}
	return logger.Text(w, level)
}

// Package config provides configuration loading for the segledger command.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// configValidate checks struct tags on Config.
var configValidate = validator.New()

// Config is the complete command configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Run     RunConfig     `yaml:"run"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format is text or json.
	Format string `yaml:"format" validate:"oneof=text json"`
}

// RunConfig configures script execution.
type RunConfig struct {
	// Workers bounds how many scripts run at once (0 = one per CPU).
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`
	// Timeout bounds a single script (0 = no limit).
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// FailFast stops scheduling scripts after the first failure.
	FailFast bool `yaml:"fail_fast"`
}

// MetricsConfig configures the metrics dump.
type MetricsConfig struct {
	// Output is a file the Prometheus registry is written to after a run
	// (empty = no dump).
	Output string `yaml:"output"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Run: RunConfig{
			Workers: 0,
			Timeout: 0,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SlogLevel maps Log.Level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the logger described by Log, writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

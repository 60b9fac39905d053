// Package config loads the bridge configuration from YAML.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/engine"
)

// Environment variables that override the paths of a loaded file.
const (
	EnvRuntime = "AUTOPILOT_RUNTIME"
	EnvBundle  = "AUTOPILOT_BUNDLE"
	EnvConfig  = "AUTOPILOT_CONFIG"
)

// Config is the complete bridge configuration
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
}

// RuntimeConfig selects the runtime image, bundle and limits
type RuntimeConfig struct {
	Library          string `yaml:"library"`            // runtime image path
	Bundle           string `yaml:"bundle"`             // class bundle directory
	Class            string `yaml:"class"`              // binary class name
	CacheDir         string `yaml:"cache_dir"`          // compilation cache, empty disables
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"` // 64 KiB pages
	TeardownOnStop   bool   `yaml:"teardown_on_stop"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
	GuestStdout bool   `yaml:"guest_stdout"` // forward guest stdout/stderr
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Class:            autopilot.DefaultClass,
			MemoryLimitPages: engine.DefaultMemoryLimitPages,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv loads the file named by AUTOPILOT_CONFIG, or returns the defaults
// with environment overrides when it is unset.
func FromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return Load(path)
	}
	cfg := Default()
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv replaces the paths with AUTOPILOT_RUNTIME and AUTOPILOT_BUNDLE
// when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRuntime); v != "" {
		c.Runtime.Library = v
	}
	if v := os.Getenv(EnvBundle); v != "" {
		c.Runtime.Bundle = v
	}
}

// Validate checks the values a session cannot start without.
func Validate(c *Config) error {
	if c.Runtime.Class == "" {
		return fmt.Errorf("runtime.class must not be empty")
	}
	if c.Runtime.MemoryLimitPages == 0 || c.Runtime.MemoryLimitPages > engine.DefaultMemoryLimitPages {
		return fmt.Errorf("runtime.memory_limit_pages must be in 1..%d, got %d",
			engine.DefaultMemoryLimitPages, c.Runtime.MemoryLimitPages)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Options converts the runtime section to session options.
func (c *Config) Options(log *zap.Logger) []autopilot.Option {
	opts := []autopilot.Option{
		autopilot.WithLogger(log),
		autopilot.WithClass(c.Runtime.Class),
		autopilot.WithMemoryLimitPages(c.Runtime.MemoryLimitPages),
		autopilot.WithTeardownOnStop(c.Runtime.TeardownOnStop),
	}
	if c.Runtime.CacheDir != "" {
		opts = append(opts, autopilot.WithCompilationCacheDir(c.Runtime.CacheDir))
	}
	if c.Logging.GuestStdout {
		opts = append(opts, autopilot.WithStdout(os.Stdout), autopilot.WithStderr(os.Stderr))
	}
	return opts
}

// Logger builds a zap logger for the logging section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Package config provides configuration for the camkit daemon: a YAML file
// with environment-variable overrides for the fields operators change most.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr = ":8090"
	DefaultOutputDir  = "./captures"
	DefaultBackend    = "mock"
)

// Config aggregates daemon configuration.
type Config struct {
	// Backend selects the driver: "mock" or "webcam".
	Backend string `yaml:"backend"`

	// DeviceID names the device to open (backend-specific).
	DeviceID string `yaml:"device_id"`

	// ListenAddr is the control server bind address.
	ListenAddr string `yaml:"listen_addr"`

	// OutputDir is where captures are persisted.
	OutputDir string `yaml:"output_dir"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// DebounceMS overrides the picker quiet window (0 = default).
	DebounceMS int `yaml:"debounce_ms"`

	// CaptureTimeoutMS overrides the buffer-match deadline (0 = default).
	CaptureTimeoutMS int `yaml:"capture_timeout_ms"`

	// DisplayRotation is the display rotation in degrees for EXIF
	// orientation: 0, 90, 180, or 270.
	DisplayRotation int `yaml:"display_rotation"`

	// FilterTables hides ISO/shutter entries outside the device ranges.
	FilterTables bool `yaml:"filter_tables"`

	// FocusRangeMultiplier overrides the focus calibration constant
	// (0 = default).
	FocusRangeMultiplier float64 `yaml:"focus_range_multiplier"`
}

// Default returns the daemon defaults.
func Default() Config {
	return Config{
		Backend:    DefaultBackend,
		DeviceID:   "mock-0",
		ListenAddr: DefaultListenAddr,
		OutputDir:  DefaultOutputDir,
		LogLevel:   "info",
	}
}

// Load reads path (if non-empty) over the defaults, then applies env
// overrides. A missing file path is an error; an empty path is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Env override names.
const (
	EnvBackend  = "CAMKIT_BACKEND"
	EnvDevice   = "CAMKIT_DEVICE"
	EnvAddr     = "CAMKIT_ADDR"
	EnvOutput   = "CAMKIT_OUTPUT"
	EnvLogLevel = "CAMKIT_LOG_LEVEL"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Backend {
	case "mock", "webcam":
	default:
		return fmt.Errorf("config: backend must be mock or webcam, got %q", c.Backend)
	}
	switch c.DisplayRotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("config: display_rotation must be 0/90/180/270, got %d", c.DisplayRotation)
	}
	if c.DebounceMS < 0 || c.CaptureTimeoutMS < 0 {
		return fmt.Errorf("config: negative durations are invalid")
	}
	if c.FocusRangeMultiplier < 0 {
		return fmt.Errorf("config: focus_range_multiplier must be positive")
	}
	return nil
}

// Debounce returns the configured quiet window, or zero when unset.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// CaptureTimeout returns the configured match deadline, or zero when unset.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutMS) * time.Millisecond
}

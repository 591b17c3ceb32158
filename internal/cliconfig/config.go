// Package cliconfig holds the CLI configuration for handrec with the
// usual three-layer precedence: defaults, then config file, then
// HANDREC_* environment variables, then explicit flags.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds CLI configuration for handrec.
type Config struct {
	// OutputPath is the recording file for the record command.
	// Empty means a timestamped name in the working directory.
	OutputPath string

	// Rate is the nominal event rate in Hz. Drives the synthetic
	// source and the analyzer's expected interval.
	Rate float64

	// DurationLimit stops recording after this long. 0 = until signal.
	DurationLimit time.Duration

	// Pipeline tuning.
	QueueCapacity   int
	ChunkSize       int
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration

	// MarkerFile, when set, is watched for task-window toggles.
	MarkerFile string

	// GapFactor classifies analyzer gaps (interval > factor * nominal).
	GapFactor float64

	// SDKPath is the tracking SDK install location override, consumed
	// by the device connection layer, not by the pipeline.
	SDKPath string

	Debug bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Rate:            100,
		QueueCapacity:   2000,
		ChunkSize:       1000,
		FlushInterval:   500 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
		GapFactor:       1.5,
		SDKPath:         os.Getenv("LEAP_SDK_PATH"),
	}
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.OutputPath == "" {
		c.OutputPath = fmt.Sprintf("handrec-%s.hpos", time.Now().Format("20060102-150405"))
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.GapFactor <= 1 {
		return fmt.Errorf("gap factor must be greater than 1")
	}
	return nil
}

// NominalInterval derives the expected inter-frame spacing from Rate.
func (c *Config) NominalInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Rate)
}

// Logger returns the CLI's console logger.
func Logger() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

// configSetter applies layered configuration values while respecting
// flags the user set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

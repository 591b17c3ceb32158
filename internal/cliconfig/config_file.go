package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to keep the
// TOML readable. Bool fields are pointers so an absent key is
// distinguishable from false.
type FileConfig struct {
	OutputPath      string  `toml:"output_path"`
	Rate            float64 `toml:"rate"`
	DurationLimit   string  `toml:"duration_limit"`
	QueueCapacity   int     `toml:"queue_capacity"`
	ChunkSize       int     `toml:"chunk_size"`
	FlushInterval   string  `toml:"flush_interval"`
	ShutdownTimeout string  `toml:"shutdown_timeout"`
	MarkerFile      string  `toml:"marker_file"`
	GapFactor       float64 `toml:"gap_factor"`
	SDKPath         string  `toml:"sdk_path"`
	Debug           *bool   `toml:"debug"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.handrec/config.toml when the home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".handrec", "config.toml")
	}
	return ""
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ApplyFileConfig layers file values onto cfg, skipping any flag the
// user set explicitly.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("output", fc.OutputPath, &cfg.OutputPath)
	s.setFloat("rate", fc.Rate, &cfg.Rate)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setInt("chunk-size", fc.ChunkSize, &cfg.ChunkSize)
	s.setString("marker-file", fc.MarkerFile, &cfg.MarkerFile)
	s.setFloat("gap-factor", fc.GapFactor, &cfg.GapFactor)
	s.setString("sdk-path", fc.SDKPath, &cfg.SDKPath)
	s.setBool("debug", fc.Debug, &cfg.Debug)

	if err := s.setDuration("duration", fc.DurationLimit, &cfg.DurationLimit); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

package cliconfig

import "os"

// ApplyEnvConfig layers HANDREC_* environment variables onto cfg.
// Environment overrides the config file but not explicit flags.
// LEAP_SDK_PATH is honored for compatibility with the tracking SDK's
// own convention.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("output", os.Getenv("HANDREC_OUTPUT"), &cfg.OutputPath)
	s.setString("marker-file", os.Getenv("HANDREC_MARKER_FILE"), &cfg.MarkerFile)
	s.setString("sdk-path", os.Getenv("LEAP_SDK_PATH"), &cfg.SDKPath)
	s.setBoolFromString("debug", os.Getenv("HANDREC_DEBUG"), &cfg.Debug)

	if err := s.setFloatFromString("rate", os.Getenv("HANDREC_RATE"), &cfg.Rate); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-capacity", os.Getenv("HANDREC_QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}
	if err := s.setIntFromString("chunk-size", os.Getenv("HANDREC_CHUNK_SIZE"), &cfg.ChunkSize); err != nil {
		return err
	}
	if err := s.setFloatFromString("gap-factor", os.Getenv("HANDREC_GAP_FACTOR"), &cfg.GapFactor); err != nil {
		return err
	}
	if err := s.setDuration("duration", os.Getenv("HANDREC_DURATION"), &cfg.DurationLimit); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", os.Getenv("HANDREC_FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("HANDREC_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

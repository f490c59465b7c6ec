package main

import (
	"fmt"
	"io"

	"imrmap/internal/config"
	"imrmap/internal/logging"
	"imrmap/internal/store"
)

// loadStudy reads the study file, applies the logging flags and
// initialises the default logger on w.
func loadStudy(w io.Writer) (*config.Config, error) {
	cfg, err := config.LoadFromPath(rootFlags.config)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Logging.Format = rootFlags.logFormat
	}
	if err := initLogging(cfg.Logging, w); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(l config.Logging, w io.Writer) error {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("log format must be text or json, got %q", l.Format)
	}
	logging.Init(level, l.Format, w)
	return nil
}

// openArchive opens the run store at path, falling back to the default
// location.
func openArchive(path string) (*store.SqlStore, error) {
	if path == "" {
		path = store.DefaultDBPath
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return st, nil
}

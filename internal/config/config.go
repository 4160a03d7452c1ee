// Package config handles application configuration and setup.
package config

import (
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/options"
)

// CreateLogger creates the process logger for the flags. Debug wins over quiet.
func CreateLogger(flags options.Flags) *log.Logger {
	cfg := log.DefaultConfig()
	switch {
	case flags.Debug:
		cfg.Level = log.DebugLevel
	case flags.Quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

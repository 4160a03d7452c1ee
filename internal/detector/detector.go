// Package detector handles system architecture detection.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/log"
)

// ARM64 is a raw little endian ARM64 code image.
const ARM64 arch.System = "arm64"

// Detector handles system architecture detection from file extensions and options.
type Detector struct {
	logger *log.Logger
}

// New creates a new system detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the system architecture from the explicit system name or,
// if none is given, from the input filename extension.
func (d *Detector) Detect(system, input string) arch.System {
	if strings.EqualFold(system, string(ARM64)) {
		return ARM64
	}

	sys, _ := arch.SystemFromString(system)
	if sys == "" {
		sys = detectFromFile(input)
		d.logger.Debug("Auto-detected system",
			log.Stringer("system", sys),
			log.String("file", input))
	}
	return sys
}

// detectFromFile determines the system type based on file extension.
func detectFromFile(filename string) arch.System {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ch8", ".rom":
		return arch.CHIP8System
	case ".arm64", ".aarch64":
		return ARM64
	default:
		// .nes and unknown extensions
		return arch.NES
	}
}

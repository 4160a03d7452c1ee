// Package loader handles image file loading and builds the address space for
// the target system.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrorev/internal/options"
)

// Loader handles loading image files from disk.
type Loader struct{}

// New creates a new image loader.
func New() *Loader {
	return &Loader{}
}

// Load loads and parses an image file based on the system type and options.
// NES images are parsed as iNES cartridges unless binary mode is set, all other
// systems are loaded as raw data.
// Returns the cartridge and an optional Code/Data Log reader if specified.
func (l *Loader) Load(opts options.Program, system arch.System) (*cartridge.Cartridge, io.ReadCloser, error) {
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file %s: %w", opts.Input, err)
	}

	cart, err := l.LoadFromBytes(data, opts.Binary, system)
	if err != nil {
		return nil, nil, err
	}

	var cdlReader io.ReadCloser
	if opts.CodeDataLog != "" {
		cdlReader, err = os.Open(opts.CodeDataLog)
		if err != nil {
			return nil, nil, fmt.Errorf("opening CDL file %s: %w", opts.CodeDataLog, err)
		}
	}

	return cart, cdlReader, nil
}

// LoadFromBytes parses the image data. Raw data is not padded, the PRG holds
// exactly the bytes of the image.
func (l *Loader) LoadFromBytes(data []byte, binary bool, system arch.System) (*cartridge.Cartridge, error) {
	if binary || system != arch.NES {
		cart, err := cartridge.LoadBuffer(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("loading raw image: %w", err)
		}
		cart.PRG = cart.PRG[:min(len(data), len(cart.PRG))]
		return cart, nil
	}

	cart, err := cartridge.LoadFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}
	return cart, nil
}

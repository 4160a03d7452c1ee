package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/arch/system/nes/codedatalog"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/arch/chip8"
	"github.com/retroenv/retrorev/internal/arch/m6502"
	"github.com/retroenv/retrorev/internal/detector"
	"github.com/retroenv/retrorev/internal/interval"
	"github.com/retroenv/retrorev/internal/mapper"
	"github.com/retroenv/retrorev/internal/options"
	"github.com/retroenv/retrorev/internal/space"
)

var errEmptyImage = errors.New("image contains no data")

// Image is a program mapped into the address space of its system.
type Image struct {
	Space   space.Space
	Entries []uint64

	// Mapper is set for NES images.
	Mapper *mapper.Mapper
}

// Map builds the address space of the cartridge for the system set in the
// options and collects the entry points of the program. The optional
// Code/Data Log adds the subroutine entry points it recorded.
func Map(logger *log.Logger, cart *cartridge.Cartridge, cdl io.Reader, opts options.Analysis) (*Image, error) {
	if len(cart.PRG) == 0 {
		return nil, errEmptyImage
	}

	switch opts.System {
	case arch.NES:
		return mapNES(logger, cart, cdl, opts)
	case arch.CHIP8System:
		return mapCHIP8(cart, opts)
	case detector.ARM64:
		return mapARM64(cart, opts)
	default:
		return nil, fmt.Errorf("unsupported system '%s'", opts.System)
	}
}

func mapNES(logger *log.Logger, cart *cartridge.Cartridge, cdl io.Reader, opts options.Analysis) (*Image, error) {
	m, err := mapper.New(logger, cart, opts.SplitLimit)
	if err != nil {
		return nil, fmt.Errorf("mapping cartridge: %w", err)
	}
	img := &Image{
		Space:  m.Space(),
		Mapper: m,
	}

	switch {
	case opts.HasBase:
		img.Entries = []uint64{opts.Base}

	case opts.Binary:
		// raw binaries only have a vector table if they fill the whole bank area
		handlers, err := m6502.Vectors(logger, img.Space)
		if err != nil || handlers.Reset == 0 {
			img.Entries = []uint64{mapper.CodeBaseAddress}
			break
		}
		img.Entries = handlers.Entries()

	default:
		handlers, err := m6502.Vectors(logger, img.Space)
		if err != nil {
			return nil, fmt.Errorf("reading interrupt vectors: %w", err)
		}
		img.Entries = handlers.Entries()
	}

	if cdl != nil {
		prgFlags, err := codedatalog.LoadFile(cart, cdl)
		if err != nil {
			return nil, fmt.Errorf("loading code/data log: %w", err)
		}
		entries, err := m.ApplyCodeDataLog(prgFlags)
		if err != nil {
			return nil, fmt.Errorf("applying code/data log: %w", err)
		}
		logger.Debug("Loaded code/data log", log.Int("entries", len(entries)))
		img.Entries = append(img.Entries, entries...)
	}
	return img, nil
}

func mapCHIP8(cart *cartridge.Cartridge, opts options.Analysis) (*Image, error) {
	mem := space.NewByteMem("ram", 0, chip8.MaxAddress+1, interval.WithSplitLimit(opts.SplitLimit))
	if err := mem.Load(chip8.ProgramStart, cart.PRG); err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	mem.AddRange(chip8.ProgramStart, chip8.ProgramStart+uint64(len(cart.PRG)), "program")

	if err := mem.SetLabel(chip8.ProgramStart, "start"); err != nil {
		return nil, fmt.Errorf("labeling entry point: %w", err)
	}
	return &Image{
		Space:   mem,
		Entries: []uint64{chip8.ProgramStart},
	}, nil
}

func mapARM64(cart *cartridge.Cartridge, opts options.Analysis) (*Image, error) {
	text := space.NewByteMemFrom("text", opts.Base, cart.PRG, interval.WithSplitLimit(opts.SplitLimit))
	if err := text.SetLabel(opts.Base, "start"); err != nil {
		return nil, fmt.Errorf("labeling entry point: %w", err)
	}
	return &Image{
		Space:   text,
		Entries: []uint64{opts.Base},
	}, nil
}

// Package mapper maps the memory of a NES cartridge into the CPU address space.
package mapper

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/arch/system/nes/codedatalog"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/interval"
	"github.com/retroenv/retrorev/internal/space"
)

// CPU memory layout.
const (
	BankWindowSize  = 0x2000
	CodeBaseAddress = 0x8000

	ramSize   = 0x800
	ramEnd    = 0x2000
	windows   = 4
	cpuEnd    = 0x10000
	maxLinear = 0x8000
)

var errNoPRG = errors.New("cartridge has no PRG data")

// Mapper holds the CPU address space of a cartridge and its backing stores.
// PRG data is split into 8 KiB banks, the internal RAM is mirrored up to 0x2000.
type Mapper struct {
	logger *log.Logger
	cpu    *space.MemMapper
	ram    *space.ByteMem
	banks  []*space.ByteMem

	splitLimit uint64
}

// New creates the CPU address space for the cartridge. PRG data that is not a
// multiple of the bank size is mapped linearly at the code base address, which
// is used for raw binaries.
func New(logger *log.Logger, cart *cartridge.Cartridge, splitLimit uint64) (*Mapper, error) {
	if len(cart.PRG) == 0 {
		return nil, errNoPRG
	}

	m := &Mapper{
		logger:     logger,
		cpu:        space.NewMemMapper("cpu", 0, cpuEnd, space.WithSplitLimit(splitLimit)),
		ram:        space.NewByteMem("ram", 0, ramSize, interval.WithSplitLimit(splitLimit)),
		splitLimit: splitLimit,
	}

	for address := uint64(0); address < ramEnd; address += ramSize {
		if err := m.cpu.Map(m.ram, address, space.Shared()); err != nil {
			return nil, fmt.Errorf("mapping ram at 0x%04x: %w", address, err)
		}
	}

	if len(cart.PRG)%BankWindowSize != 0 {
		if err := m.mapLinear(cart.PRG); err != nil {
			return nil, err
		}
		return m, nil
	}

	for i := 0; i < len(cart.PRG); i += BankWindowSize {
		name := fmt.Sprintf("prg%d", len(m.banks))
		m.banks = append(m.banks, space.NewByteMemFrom(name, 0, cart.PRG[i:i+BankWindowSize],
			interval.WithSplitLimit(splitLimit)))
	}
	if err := m.configureDefaultBankMapping(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapper) mapLinear(prg []byte) error {
	if len(prg) > maxLinear {
		return fmt.Errorf("invalid bank alignment for bank size %d", len(prg))
	}
	bank := space.NewByteMemFrom("prg", 0, prg, interval.WithSplitLimit(m.splitLimit))
	m.banks = append(m.banks, bank)
	if err := m.cpu.Map(bank, CodeBaseAddress, space.Shared()); err != nil {
		return fmt.Errorf("mapping prg: %w", err)
	}
	m.cpu.AddRange(CodeBaseAddress, CodeBaseAddress+uint64(len(prg)), bank.Name())
	return nil
}

// configureDefaultBankMapping maps the first two banks to 0x8000 and 0xa000 and
// the last two banks to 0xc000 and 0xe000. Small cartridges are mirrored.
func (m *Mapper) configureDefaultBankMapping() error {
	n := len(m.banks)
	mapping := [windows]int{0, 1 % n, (n - 2 + n) % n, n - 1}
	if n > windows {
		m.logger.Warn("Only the first and last 2 PRG banks are mapped",
			log.Int("banks", n))
	}

	for window, bank := range mapping {
		address := uint64(CodeBaseAddress + window*BankWindowSize)
		if err := m.cpu.Map(m.banks[bank], address, space.Shared()); err != nil {
			return fmt.Errorf("mapping bank %d at 0x%04x: %w", bank, address, err)
		}
		m.cpu.AddRange(address, address+BankWindowSize, m.banks[bank].Name())
	}
	return nil
}

// Space returns the CPU address space.
func (m *Mapper) Space() *space.MemMapper {
	return m.cpu
}

// Banks returns the PRG banks.
func (m *Mapper) Banks() []*space.ByteMem {
	return m.banks
}

// Address returns the lowest CPU address that the PRG offset is visible at.
func (m *Mapper) Address(offset int) (uint64, bool) {
	if len(m.banks) == 0 || offset < 0 {
		return 0, false
	}
	lo, hi := m.banks[0].Bounds()
	size := int(hi - lo)
	bank, index := offset/size, uint64(offset%size)
	if bank >= len(m.banks) {
		return 0, false
	}

	var address uint64
	found := false
	for _, seg := range m.cpu.Segments() {
		if seg.Backing != space.Space(m.banks[bank]) || index < seg.Offset {
			continue
		}
		if a := seg.Lo + index - seg.Offset; !found || a < address {
			address, found = a, true
		}
	}
	return address, found
}

// ApplyCodeDataLog labels all subroutine entry points of the code/data log and
// returns their CPU addresses. Entry points of banks that are not mapped are
// skipped.
func (m *Mapper) ApplyCodeDataLog(prgFlags []codedatalog.PrgFlag) ([]uint64, error) {
	var entries []uint64
	for offset, flags := range prgFlags {
		if flags&codedatalog.SubEntryPoint == 0 {
			continue
		}
		address, ok := m.Address(offset)
		if !ok {
			continue
		}

		entries = append(entries, address)
		if len(m.cpu.Labels(address)) > 0 {
			continue
		}
		if err := m.cpu.SetLabel(address, fmt.Sprintf("_func_%04x", address)); err != nil {
			return nil, fmt.Errorf("labeling entry point: %w", err)
		}
	}
	return entries, nil
}

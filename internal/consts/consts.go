// Package consts manages hardware register constants referenced by instructions.
package consts

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/register"
	"github.com/retroenv/retrorev/internal/symbols"
)

// Constant is a named memory mapped register. The name can differ depending on
// whether the register is read or written.
type Constant struct {
	Address uint64
	Read    string
	Write   string
}

// Consts manages constants in the analyzed program.
type Consts struct {
	*symbols.Manager[Constant]
}

// New creates a new constants manager from the access mode tables.
func New(sources ...map[uint16]cpu6502.AccessModeConstant) (*Consts, error) {
	c := &Consts{
		Manager: symbols.New[Constant](),
	}
	for _, source := range sources {
		if err := c.merge(source); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NES creates a constants manager for the NES APU, controller and PPU registers.
func NES() (*Consts, error) {
	c, err := New(register.APUAddressToName, register.ControllerAddressToName, register.PPUAddressToName)
	if err != nil {
		return nil, fmt.Errorf("processing nes constants: %w", err)
	}
	return c, nil
}

func (c *Consts) merge(source map[uint16]cpu6502.AccessModeConstant) error {
	for addr, constantInfo := range source {
		address := uint64(addr)
		translation, _ := c.Get(address)
		translation.Address = address

		if constantInfo.Mode&cpu6502.ReadAccess != 0 {
			if translation.Read != "" {
				return fmt.Errorf("constant with address 0x%04X and read mode is defined twice", address)
			}
			translation.Read = constantInfo.Constant
		}

		if constantInfo.Mode&cpu6502.WriteAccess != 0 {
			if translation.Write != "" {
				return fmt.Errorf("constant with address 0x%04X and write mode is defined twice", address)
			}
			translation.Write = constantInfo.Constant
		}

		c.Set(address, translation)
	}
	return nil
}

// ReplaceParameter replaces the address in the operand of an instruction by a
// constant name if the address is a known constant. The returned flag reports
// whether the address is a constant, even if no name matches the access.
func (c *Consts) ReplaceParameter(address uint64, reads, writes bool, operand string) (string, bool) {
	constantInfo, ok := c.Get(address)
	if !ok {
		return "", false
	}

	// split operand in case of x/y indexing, only the first part will be replaced by a const name
	parts := strings.Split(operand, ",")

	if constantInfo.Read != "" && reads {
		c.MarkUsed(address)
		parts[0] = constantInfo.Read
		return strings.Join(parts, ","), true
	}
	if constantInfo.Write != "" && writes {
		c.MarkUsed(address)
		parts[0] = constantInfo.Write
		return strings.Join(parts, ","), true
	}

	return operand, true
}

package chip8

import (
	"context"
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// CHIP-8 memory layout constants.
const (
	// ProgramStart is the memory address where CHIP-8 programs begin execution.
	// CHIP-8 programs are loaded at address 0x200 in the virtual machine's memory space,
	// but stored starting at offset 0x0 in ROM files.
	ProgramStart = 0x200

	// MaxAddress is the highest valid address in CHIP-8 memory space (4KB total).
	MaxAddress = 0xFFF
)

// opcodeSize is the size of CHIP-8 instructions in bytes.
const opcodeSize = 2

// Name is the decoder name.
const Name = "chip8"

// Decoder decodes CHIP-8 instructions.
type Decoder struct{}

var _ code.Decoder = (*Decoder)(nil)

// New returns a new CHIP-8 decoder.
func New() *Decoder {
	return &Decoder{}
}

// Name returns the decoder name.
func (d *Decoder) Name() string {
	return Name
}

// Entry returns the entry point of CHIP-8 programs.
func (d *Decoder) Entry() uint64 {
	return ProgramStart
}

// Decode decodes the instruction at the address. Unknown opcodes are recorded as
// data and produce no code.
func (d *Decoder) Decode(_ context.Context, sp space.Space, address uint64) (*code.Code, error) {
	w, err := space.BE16(sp, address)
	if err != nil {
		return nil, fmt.Errorf("reading opcode at 0x%04x: %w", address, err)
	}

	ins, ok := lookup(w)
	if !ok {
		data := space.NewLeaf(sp, address, address+opcodeSize, space.TagData)
		data.SetText(fmt.Sprintf(".word $%04X", w))
		if err := sp.Insert(data); err != nil {
			return nil, fmt.Errorf("inserting data: %w", err)
		}
		return nil, nil
	}

	c := code.New(sp, address, d)
	c.SetInstruction(ins.Name(), formatInstruction(ins.Name(), w))
	if err := c.SetSize(opcodeSize); err != nil {
		return nil, err
	}

	if err := d.addFlows(sp, c, ins); err != nil {
		return nil, err
	}
	if err := sp.Insert(c); err != nil {
		return nil, fmt.Errorf("inserting instruction: %w", err)
	}
	return c, nil
}

// addFlows registers the control flow of the instruction.
func (d *Decoder) addFlows(sp space.Space, c *code.Code, ins Instruction) error {
	target := uint64(ins.Target())
	inProgram := target >= ProgramStart && target <= MaxAddress
	next := c.Address() + opcodeSize

	switch {
	case ins.IsJump():
		if inProgram {
			c.To(code.Jump, code.Always, target)
		} else {
			c.Unknown(code.Jump, code.Always)
		}

	case ins.IsIndirectJump():
		c.Unknown(code.Jump, code.Always)

	case ins.IsCall():
		if inProgram {
			c.To(code.Call, code.Always, target)
		} else {
			c.Unknown(code.Call, code.Always)
		}
		c.Fallthrough(code.Always)

	case ins.IsSkip():
		c.Fallthrough(code.When("!" + ins.Name()))
		c.To(code.CondJump, code.When(ins.Name()), next+opcodeSize)

	case ins.IsReturn():
		c.Unknown(code.Return, code.Always)

	case ins.IsDataReference():
		if inProgram {
			if err := labelData(sp, target); err != nil {
				return err
			}
		}
		c.Fallthrough(code.Always)

	default:
		c.Fallthrough(code.Always)
	}
	return nil
}

// labelData labels the target of a data reference. Targets outside of the space
// are not labeled.
func labelData(sp space.Space, target uint64) error {
	name := fmt.Sprintf("data_%03x", target)
	for _, label := range sp.Labels(target) {
		if label == name {
			return nil
		}
	}
	if err := sp.SetLabel(target, name); err != nil && !space.IsRecoverable(err) {
		return fmt.Errorf("labeling data reference: %w", err)
	}
	return nil
}

// formatInstruction formats a CHIP-8 instruction with its parameters.
// Returns the formatted parameter string for the given instruction.
func formatInstruction(name string, opcode uint16) string {
	switch name {
	case chip8.ClsName, chip8.RetName:
		return "" // No parameters
	case chip8.JpName:
		return formatJumpInstruction(opcode)
	case chip8.CallName:
		return fmt.Sprintf("$%03X", opcode&0x0FFF)
	case chip8.SeName, chip8.SneName:
		return formatCompareInstruction(opcode)
	case chip8.LdName:
		return formatLoadInstruction(opcode)
	case chip8.AddName:
		return formatAddInstruction(opcode)
	case chip8.OrName, chip8.AndName, chip8.XorName, chip8.SubName, chip8.SubnName:
		return fmt.Sprintf("V%X, V%X", registerX(opcode), registerY(opcode))
	case chip8.ShrName, chip8.ShlName, chip8.SkpName, chip8.SknpName:
		return fmt.Sprintf("V%X", registerX(opcode))
	case chip8.RndName:
		return fmt.Sprintf("V%X, $%02X", registerX(opcode), opcode&0x00FF)
	case chip8.DrwName:
		return fmt.Sprintf("V%X, V%X, $%X", registerX(opcode), registerY(opcode), opcode&0x000F)
	}
	return ""
}

// formatJumpInstruction formats jump instructions (JP addr, JP V0+addr).
func formatJumpInstruction(opcode uint16) string {
	switch opcode & 0xF000 {
	case 0x1000:
		return fmt.Sprintf("$%03X", opcode&0x0FFF)
	case 0xB000:
		return fmt.Sprintf("V0, $%03X", opcode&0x0FFF)
	}
	return ""
}

// formatCompareInstruction formats comparison instructions (SE, SNE).
func formatCompareInstruction(opcode uint16) string {
	x := registerX(opcode)
	switch opcode & 0xF000 {
	case 0x3000, 0x4000:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
	case 0x5000, 0x9000:
		return fmt.Sprintf("V%X, V%X", x, registerY(opcode))
	}
	return ""
}

// formatLoadInstruction formats load instructions (LD Vx, byte/Vy/I).
func formatLoadInstruction(opcode uint16) string {
	x := registerX(opcode)
	switch opcode & 0xF000 {
	case 0x6000:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
	case 0x8000:
		return fmt.Sprintf("V%X, V%X", x, registerY(opcode))
	case 0xA000:
		return fmt.Sprintf("I, $%03X", opcode&0x0FFF)
	}
	return ""
}

// formatAddInstruction formats add instructions (ADD Vx, byte/Vy).
func formatAddInstruction(opcode uint16) string {
	x := registerX(opcode)
	switch opcode & 0xF000 {
	case 0x7000:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
	case 0x8000:
		return fmt.Sprintf("V%X, V%X", x, registerY(opcode))
	}
	return ""
}

// registerX extracts the X register nibble from a CHIP-8 opcode.
func registerX(opcode uint16) uint16 {
	return (opcode & 0x0F00) >> 8
}

// registerY extracts the Y register nibble from a CHIP-8 opcode.
func registerY(opcode uint16) uint16 {
	return (opcode & 0x00F0) >> 4
}

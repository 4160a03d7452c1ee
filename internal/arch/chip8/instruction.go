package chip8

import (
	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// Instruction classifies a decoded CHIP-8 opcode for control flow analysis.
type Instruction struct {
	ins    *chip8.Instruction
	opcode uint16
}

// Name returns the instruction name.
func (i Instruction) Name() string {
	if i.ins == nil {
		return ""
	}
	return i.ins.Name
}

// IsCall returns true if the instruction is a call instruction.
func (i Instruction) IsCall() bool {
	return i.ins == chip8.CallInst
}

// IsJump returns true if the instruction is a direct jump.
func (i Instruction) IsJump() bool {
	return i.ins == chip8.JpInst && i.opcode&0xF000 == 0x1000
}

// IsIndirectJump returns true for JP V0, addr.
func (i Instruction) IsIndirectJump() bool {
	return i.ins == chip8.JpInst && i.opcode&0xF000 == 0xB000
}

// IsReturn returns true if the instruction is a return instruction.
func (i Instruction) IsReturn() bool {
	return i.ins == chip8.RetInst
}

// IsSkip returns true if the instruction is a conditional skip instruction.
func (i Instruction) IsSkip() bool {
	if i.ins == nil {
		return false
	}
	return chip8.SkipInstructions.Contains(i.ins.Name)
}

// IsDataReference returns true if the instruction references data (LD I, addr).
func (i Instruction) IsDataReference() bool {
	return i.ins == chip8.LdInst && i.opcode&0xF000 == 0xA000
}

// Target returns the 12 bit address operand.
func (i Instruction) Target() uint16 {
	return i.opcode & 0x0FFF
}

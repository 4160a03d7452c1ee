package chip8

import (
	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// lookup returns the instruction matching the opcode word.
func lookup(w uint16) (Instruction, bool) {
	firstNibble := (w & 0xF000) >> 12
	for _, op := range chip8.Opcodes[int(firstNibble)] {
		if op.Info.Mask&w == op.Info.Value {
			if op.Instruction == nil {
				break
			}
			return Instruction{ins: op.Instruction, opcode: w}, true
		}
	}
	return Instruction{}, false
}

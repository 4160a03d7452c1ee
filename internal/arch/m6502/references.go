package m6502

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/mapper"
	"github.com/retroenv/retrorev/internal/space"
	"github.com/retroenv/retrorev/internal/vars"
)

// ConstantReplacer replaces the address of an operand by a register name.
type ConstantReplacer interface {
	ReplaceParameter(address uint64, reads, writes bool, operand string) (string, bool)
}

// ReferenceRecorder records the memory accesses of instructions.
type ReferenceRecorder interface {
	AddReference(address, usage uint64, access vars.Access)
}

var _ vars.Formatter = (*Decoder)(nil)

// replaceParamByAlias replaces the operand address with a constant name if it
// matches a register, otherwise the access is recorded as a variable reference.
func (d *Decoder) replaceParamByAlias(address uint64, op cpu6502.Opcode, param any, operands string) (string, error) {
	target, ok := addressingParam(param)
	if !ok || target >= uint64(cpu6502.InterruptVectorStartAddress) {
		return operands, nil
	}

	var forced bool
	if _, ok := cpu6502.BranchingInstructions[op.Instruction.Name]; ok {
		var handle bool
		handle, forced = checkBranchingParam(target, op)
		if !handle {
			return operands, nil
		}
	}

	addressing := cpu6502.AddressingMode(op.Addressing)
	reads, writes := memoryAccess(op)
	if d.options.Constants != nil {
		alias, ok := d.options.Constants.ReplaceParameter(target, reads, writes, fmt.Sprintf("$%04X", target))
		if ok {
			converted, err := parameter.String(d.converter, addressing, alias)
			if err != nil {
				return "", fmt.Errorf("getting parameter as string: %w", err)
			}
			return converted, nil
		}
	}

	if d.options.References != nil {
		d.options.References.AddReference(target, address, vars.Access{
			Reads:   reads,
			Writes:  writes,
			Indexed: isAddressingIndexed(addressing),
			Forced:  forced,
		})
	}
	return operands, nil
}

// FormatReference rewrites the operand of the instruction to use the reference name.
func (d *Decoder) FormatReference(sp space.Space, c *code.Code, reference string) error {
	v, err := sp.Read(c.Address())
	if err != nil {
		return fmt.Errorf("reading opcode at 0x%04x: %w", c.Address(), err)
	}
	addressing := cpu6502.AddressingMode(cpu6502.Opcodes[byte(v)].Addressing)

	switch addressing {
	case cpu6502.ZeroPageAddressing, cpu6502.ZeroPageXAddressing, cpu6502.ZeroPageYAddressing,
		cpu6502.AbsoluteAddressing, cpu6502.AbsoluteXAddressing, cpu6502.AbsoluteYAddressing,
		cpu6502.IndirectAddressing, cpu6502.IndirectXAddressing, cpu6502.IndirectYAddressing:
	default:
		return nil
	}

	converted, err := parameter.String(d.converter, addressing, reference)
	if err != nil {
		return fmt.Errorf("getting parameter as string: %w", err)
	}
	c.SetInstruction(c.Mnemonic(), converted)
	return nil
}

// checkBranchingParam checks whether the branching instruction should do a variable check for the parameter
// and forces variable usage.
func checkBranchingParam(address uint64, op cpu6502.Opcode) (bool, bool) {
	name := op.Instruction.Name
	addressing := cpu6502.AddressingMode(op.Addressing)

	switch {
	case name == cpu6502.JmpName && addressing == cpu6502.IndirectAddressing:
		return true, false
	case name == cpu6502.JmpName || name == cpu6502.JsrName:
		if addressing == cpu6502.AbsoluteAddressing && address < mapper.CodeBaseAddress {
			return true, true
		}
	}
	return false, false
}

func memoryAccess(op cpu6502.Opcode) (bool, bool) {
	if op.ReadWritesMemory(cpu6502.MemoryReadWriteInstructions) {
		return true, true
	}
	return op.ReadsMemory(cpu6502.MemoryReadInstructions), op.WritesMemory(cpu6502.MemoryWriteInstructions)
}

// addressingParam returns the address of the param if it references an address.
func addressingParam(param any) (uint64, bool) {
	switch val := param.(type) {
	case cpu6502.Absolute:
		return uint64(val), true
	case cpu6502.AbsoluteX:
		return uint64(val), true
	case cpu6502.AbsoluteY:
		return uint64(val), true
	case cpu6502.Indirect:
		return uint64(val), true
	case cpu6502.IndirectX:
		return uint64(val), true
	case cpu6502.IndirectY:
		return uint64(val), true
	case cpu6502.ZeroPage:
		return uint64(val), true
	case cpu6502.ZeroPageX:
		return uint64(val), true
	case cpu6502.ZeroPageY:
		return uint64(val), true
	default:
		return 0, false
	}
}

func isAddressingIndexed(addressing cpu6502.AddressingMode) bool {
	switch addressing {
	case cpu6502.ZeroPageXAddressing, cpu6502.ZeroPageYAddressing,
		cpu6502.AbsoluteXAddressing, cpu6502.AbsoluteYAddressing,
		cpu6502.IndirectXAddressing, cpu6502.IndirectYAddressing:
		return true
	default:
		return false
	}
}

// SetReferenceRecorder sets the recorder of memory accesses. The recorder
// usually formats references through the decoder, so it is set after creation.
func (d *Decoder) SetReferenceRecorder(recorder ReferenceRecorder) {
	d.options.References = recorder
}

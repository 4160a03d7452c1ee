// Package m6502 provides the 6502 instruction decoder.
package m6502

import (
	"context"
	"fmt"
	"slices"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// Name is the decoder name.
const Name = "m6502"

const branchIntoInstruction = "branch into instruction detected"

// Options configures the decoder.
type Options struct {
	// NoUnofficialInstructions records all unofficial opcodes as data.
	NoUnofficialInstructions bool

	// Constants replaces operand addresses of memory mapped registers by their name.
	Constants ConstantReplacer
	// References records the memory accesses of instructions.
	References ReferenceRecorder
	// JumpEngines resolves the function tables following jump engine calls.
	JumpEngines JumpEngines
}

// Decoder decodes 6502 instructions.
type Decoder struct {
	converter parameter.Converter
	options   Options
}

var _ code.Decoder = (*Decoder)(nil)

// New returns a new 6502 decoder that formats operands using the converter.
func New(converter parameter.Converter, options Options) *Decoder {
	return &Decoder{
		converter: converter,
		options:   options,
	}
}

// Name returns the decoder name.
func (d *Decoder) Name() string {
	return Name
}

// Decode decodes the instruction at the address. Bytes that can not be decoded
// as an instruction are recorded as data and produce no code. A branch into the
// middle of an already decoded instruction produces no code either, the covering
// instruction gets a comment instead.
func (d *Decoder) Decode(_ context.Context, sp space.Space, address uint64) (*code.Code, error) {
	v, err := sp.Read(address)
	if err != nil {
		return nil, fmt.Errorf("reading opcode at 0x%04x: %w", address, err)
	}
	b := byte(v)

	op := cpu6502.Opcodes[b]
	if op.Instruction == nil || d.skipUnofficial(op.Instruction) {
		return nil, insertData(sp, address, []byte{b})
	}

	addressing := cpu6502.AddressingMode(op.Addressing)
	param, paramSize, err := readParam(sp, addressing, address)
	if err != nil {
		return nil, fmt.Errorf("reading opcode parameters: %w", err)
	}
	size := uint64(1 + paramSize)

	// an instruction running into the interrupt vectors is data
	if vectors := uint64(cpu6502.InterruptVectorStartAddress); address < vectors && address+size > vectors {
		data, err := space.Bytes(sp, address, int(vectors-address))
		if err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		return nil, insertData(sp, address, data)
	}

	if covering := overlappingCode(sp, address, size); covering != nil {
		if !slices.Contains(covering.BlockComments(), branchIntoInstruction) {
			covering.AddBlockComment(branchIntoInstruction)
		}
		return nil, nil
	}

	name := op.Instruction.Name
	c := code.New(sp, address, d)
	if addressing == cpu6502.ImpliedAddressing {
		c.SetInstruction(name, "")
	} else {
		operands, err := parameter.String(d.converter, addressing, param)
		if err != nil {
			return nil, fmt.Errorf("getting parameter as string: %w", err)
		}
		operands, err = d.replaceParamByAlias(address, op, param, operands)
		if err != nil {
			return nil, err
		}
		c.SetInstruction(name, operands)
	}
	if err := c.SetSize(size); err != nil {
		return nil, err
	}

	if err := d.addFlows(sp, c, addressing, param); err != nil {
		return nil, err
	}
	if err := sp.Insert(c); err != nil {
		return nil, fmt.Errorf("inserting instruction: %w", err)
	}
	return c, nil
}

// overlappingCode returns an already decoded instruction that occupies part of
// the range [address,address+size).
func overlappingCode(sp space.Space, address, size uint64) *code.Code {
	b := sp.FindRange(address, address+size)
	for _, objs := range [][]space.Object{b.Containing, b.Equal, b.Partial, b.Contained} {
		for _, obj := range objs {
			if space.IsForeign(obj) {
				continue
			}
			if c, ok := space.Unwrap(obj).(*code.Code); ok {
				return c
			}
		}
	}
	return nil
}

// skipUnofficial returns whether the unofficial instruction should be treated
// as data. Unofficial nop and sbc variants are ambiguous with the official
// encodings and are always skipped.
func (d *Decoder) skipUnofficial(ins *cpu6502.Instruction) bool {
	if !ins.Unofficial {
		return false
	}
	if d.options.NoUnofficialInstructions {
		return true
	}
	return ins.Name == cpu6502.NopName || ins.Name == cpu6502.SbcName
}

// addFlows registers the control flow of the instruction.
func (d *Decoder) addFlows(sp space.Space, c *code.Code, addressing cpu6502.AddressingMode, param any) error {
	name := c.Mnemonic()
	target, hasTarget := param.(cpu6502.Absolute)
	dst := uint64(target)

	switch {
	case name == cpu6502.JsrName:
		c.To(code.Call, code.Always, dst)
		engine, err := d.addJumpEngineFlows(sp, c, dst)
		if err != nil {
			return err
		}
		if !engine {
			c.Fallthrough(code.Always)
		}
		return label(sp, dst, "_func_%04x")

	case name == cpu6502.JmpName && hasTarget:
		c.To(code.Jump, code.Always, dst)
		return label(sp, dst, "_label_%04x")

	case name == cpu6502.JmpName:
		c.Unknown(code.Jump, code.Always)
		return nil

	case name == cpu6502.RtsName || name == cpu6502.RtiName:
		c.Unknown(code.Return, code.Always)
		return nil

	case addressing == cpu6502.RelativeAddressing:
		return d.addBranchFlows(sp, c, dst)
	}

	if _, ok := cpu6502.NotExecutingFollowingOpcodeInstructions[name]; ok {
		c.Unknown(code.Unresolved, code.Always)
		return nil
	}
	c.Fallthrough(code.Always)
	return nil
}

// label adds a generated label to the target unless it already has one.
// Targets outside of the space are not labeled.
func label(sp space.Space, target uint64, format string) error {
	if len(sp.Labels(target)) > 0 {
		return nil
	}
	if err := sp.SetLabel(target, fmt.Sprintf(format, target)); err != nil && !space.IsRecoverable(err) {
		return fmt.Errorf("labeling 0x%04x: %w", target, err)
	}
	return nil
}

// insertData records the bytes at the address as data.
func insertData(sp space.Space, address uint64, data []byte) error {
	leaf := space.NewLeaf(sp, address, address+uint64(len(data)), space.TagData)
	leaf.SetText(formatBytes(data))
	if err := sp.Insert(leaf); err != nil {
		return fmt.Errorf("inserting data: %w", err)
	}
	return nil
}

func formatBytes(data []byte) string {
	s := ".byte "
	for i, b := range data {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("$%02X", b)
	}
	return s
}

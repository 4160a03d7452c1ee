// Package arm64 provides the ARM64 instruction decoder.
package arm64

import (
	"context"
	"fmt"
	"strings"

	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
	"golang.org/x/arch/arm64/arm64asm"
)

// Name is the decoder name.
const Name = "arm64"

const opcodeSize = 4

// Decoder decodes little endian ARM64 instructions.
type Decoder struct{}

var _ code.Decoder = (*Decoder)(nil)

// New returns a new ARM64 decoder.
func New() *Decoder {
	return &Decoder{}
}

// Name returns the decoder name.
func (d *Decoder) Name() string {
	return Name
}

// Decode decodes the instruction at the address. Words that do not decode to
// an instruction are recorded as data and produce no code.
func (d *Decoder) Decode(_ context.Context, sp space.Space, address uint64) (*code.Code, error) {
	raw, err := space.Bytes(sp, address, opcodeSize)
	if err != nil {
		return nil, fmt.Errorf("reading opcode at 0x%x: %w", address, err)
	}

	inst, err := arm64asm.Decode(raw)
	if err != nil {
		enc := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
		data := space.NewLeaf(sp, address, address+opcodeSize, space.TagData)
		data.SetText(fmt.Sprintf(".word 0x%08x", enc))
		if err := sp.Insert(data); err != nil {
			return nil, fmt.Errorf("inserting data: %w", err)
		}
		return nil, nil
	}

	c := code.New(sp, address, d)
	mnemonic, operands, _ := strings.Cut(strings.TrimSpace(arm64asm.GNUSyntax(inst)), " ")
	c.SetInstruction(mnemonic, operands)
	if err := c.SetSize(opcodeSize); err != nil {
		return nil, err
	}

	if err := addFlows(sp, c, inst); err != nil {
		return nil, err
	}
	if err := sp.Insert(c); err != nil {
		return nil, fmt.Errorf("inserting instruction: %w", err)
	}
	return c, nil
}

// addFlows registers the control flow of the instruction.
func addFlows(sp space.Space, c *code.Code, inst arm64asm.Inst) error {
	target, hasTarget := branchTarget(c.Address(), inst)

	switch inst.Op {
	case arm64asm.BL:
		c.To(code.Call, code.Always, target)
		c.Fallthrough(code.Always)
		return label(sp, target, "sub_%x")

	case arm64asm.BLR:
		c.Unknown(code.Call, code.Always)
		c.Fallthrough(code.Always)

	case arm64asm.B:
		if cond, ok := inst.Args[0].(arm64asm.Cond); ok {
			name := strings.ToLower(cond.String())
			c.To(code.CondJump, code.When(name), target)
			c.Fallthrough(code.When("!" + name))
		} else {
			c.To(code.Jump, code.Always, target)
		}
		return label(sp, target, "loc_%x")

	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		if !hasTarget {
			return fmt.Errorf("missing branch target of %s at 0x%x", inst.Op, c.Address())
		}
		name := strings.ToLower(inst.Op.String())
		c.To(code.CondJump, code.When(name), target)
		c.Fallthrough(code.When("!" + name))
		return label(sp, target, "loc_%x")

	case arm64asm.BR:
		c.Unknown(code.Jump, code.Always)

	case arm64asm.RET, arm64asm.ERET:
		c.Unknown(code.Return, code.Always)

	default:
		c.Fallthrough(code.Always)
	}
	return nil
}

// branchTarget returns the absolute destination of the last pc relative argument.
func branchTarget(pc uint64, inst arm64asm.Inst) (uint64, bool) {
	for i := len(inst.Args) - 1; i >= 0; i-- {
		if rel, ok := inst.Args[i].(arm64asm.PCRel); ok {
			return uint64(int64(pc) + int64(rel)), true
		}
	}
	return 0, false
}

// label adds a generated label to the target unless it already has one.
func label(sp space.Space, target uint64, format string) error {
	if len(sp.Labels(target)) > 0 {
		return nil
	}
	if err := sp.SetLabel(target, fmt.Sprintf(format, target)); err != nil && !space.IsRecoverable(err) {
		return fmt.Errorf("labeling 0x%x: %w", target, err)
	}
	return nil
}

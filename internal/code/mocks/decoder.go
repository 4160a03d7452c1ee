// Package mocks provides a scripted decoder for testing the analysis core without
// a real architecture.
package mocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// ErrNoInstruction is returned for addresses that the script does not define.
var ErrNoInstruction = errors.New("no scripted instruction")

// Flow describes a flow of a scripted instruction. A Flow without destination
// produces a flow with unknown destination unless it is a fallthrough.
type Flow struct {
	Type   code.FlowType
	Cond   code.Condition
	Dst    uint64
	HasDst bool
}

// To returns a flow with a known destination.
func To(typ code.FlowType, dst uint64) Flow {
	return Flow{Type: typ, Cond: code.Always, Dst: dst, HasDst: true}
}

// Next returns a fallthrough flow.
func Next() Flow {
	return Flow{Type: code.Fallthrough, Cond: code.Always}
}

// Ret returns a return flow.
func Ret() Flow {
	return Flow{Type: code.Return, Cond: code.Always}
}

// Instruction is a scripted instruction.
type Instruction struct {
	Name  string
	Size  uint64
	Flows []Flow
}

// Decoder decodes instructions from a script instead of memory content. It still
// reads the first word of every instruction so that memory errors surface.
type Decoder struct {
	DecoderName string
	Program     map[uint64]Instruction
	Errors      map[uint64]error // errors returned for an address instead of decoding

	Calls []uint64
}

var _ code.Decoder = (*Decoder)(nil)

// Name returns the decoder name.
func (d *Decoder) Name() string {
	if d.DecoderName == "" {
		return "script"
	}
	return d.DecoderName
}

// Decode decodes the scripted instruction at the address.
func (d *Decoder) Decode(_ context.Context, sp space.Space, address uint64) (*code.Code, error) {
	d.Calls = append(d.Calls, address)

	if err, ok := d.Errors[address]; ok {
		return nil, err
	}
	if _, err := sp.Read(address); err != nil {
		return nil, fmt.Errorf("reading opcode: %w", err)
	}

	ins, ok := d.Program[address]
	if !ok {
		return nil, fmt.Errorf("%w at 0x%04x", ErrNoInstruction, address)
	}

	c := code.New(sp, address, d)
	c.SetInstruction(ins.Name, "")
	for _, f := range ins.Flows {
		switch {
		case f.Type == code.Fallthrough:
			c.Fallthrough(f.Cond)
		case f.HasDst:
			c.To(f.Type, f.Cond, f.Dst)
		default:
			c.Unknown(f.Type, f.Cond)
		}
	}

	size := max(ins.Size, 1)
	if err := c.SetSize(size); err != nil {
		return nil, err
	}
	if err := sp.Insert(c); err != nil {
		return nil, fmt.Errorf("inserting instruction: %w", err)
	}
	return c, nil
}

// ThreeInstructions returns the program 0x10 falling through to 0x11, 0x11 jumping
// to 0x20 and 0x20 returning.
func ThreeInstructions() map[uint64]Instruction {
	return map[uint64]Instruction{
		0x10: {Name: "nop", Size: 1, Flows: []Flow{Next()}},
		0x11: {Name: "jmp", Size: 1, Flows: []Flow{To(code.Jump, 0x20)}},
		0x20: {Name: "ret", Size: 1, Flows: []Flow{Ret()}},
	}
}

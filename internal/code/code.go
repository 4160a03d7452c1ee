// Package code provides decoded instruction leaves, their control flow edges and
// the decoder interface that architectures implement.
package code

import (
	"context"
	"fmt"

	"github.com/retroenv/retrorev/internal/space"
)

// Decoder decodes one instruction of an architecture. Implementations read memory
// only through the space, insert the returned code leaf and register its flows.
// Accesses beyond mapped memory must fail with space.ErrUnmapped or
// space.ErrOutOfRange.
type Decoder interface {
	// Name returns a unique name of the decoder.
	Name() string
	// Decode decodes the instruction at the address.
	Decode(ctx context.Context, sp space.Space, address uint64) (*Code, error)
}

// Scheduler accepts further addresses to decode.
type Scheduler interface {
	Todo(address uint64, dec Decoder)
}

// Code is a decoded instruction.
type Code struct {
	*space.Leaf

	address uint64
	size    uint64
	sized   bool
	decoder Decoder

	mnemonic string
	operands string

	flows    []*Flow
	deferred []*Flow
	sched    Scheduler
}

// New returns an unsized code leaf at the address of the space.
func New(sp space.Space, address uint64, dec Decoder) *Code {
	return &Code{
		Leaf:    space.NewLeaf(sp, address, address, space.TagCode),
		address: address,
		decoder: dec,
	}
}

// Address returns the address the instruction was decoded at, in the coordinates
// of the decoding space.
func (c *Code) Address() uint64 {
	return c.address
}

// Size returns the instruction size in words and whether it is final.
func (c *Code) Size() (uint64, bool) {
	return c.size, c.sized
}

// Decoder returns the decoder that produced the instruction.
func (c *Code) Decoder() Decoder {
	return c.decoder
}

// SetSize sets the final size of the instruction. Fallthrough flows that were
// waiting for the size get their destination and are propagated if the code
// already was.
func (c *Code) SetSize(size uint64) error {
	if size == 0 {
		return fmt.Errorf("%w: zero sized instruction at 0x%04x", space.ErrPrecondition, c.address)
	}
	if err := c.Resize(c.address + size); err != nil {
		return fmt.Errorf("sizing instruction: %w", err)
	}
	c.size = size
	c.sized = true

	deferred := c.deferred
	c.deferred = nil
	for _, f := range deferred {
		f.dst = c.address + size
		f.hasDst = true
		if c.sched != nil {
			c.sched.Todo(f.dst, c.decoder)
		}
	}
	return nil
}

// SetInstruction sets the mnemonic and operand text and the rendered text of the leaf.
func (c *Code) SetInstruction(mnemonic, operands string) {
	c.mnemonic = mnemonic
	c.operands = operands
	if operands == "" {
		c.SetText(mnemonic)
		return
	}
	c.SetText(mnemonic + " " + operands)
}

// Mnemonic returns the instruction name.
func (c *Code) Mnemonic() string {
	return c.mnemonic
}

// Operands returns the operand text.
func (c *Code) Operands() string {
	return c.operands
}

// Flows returns the outgoing control flows.
func (c *Code) Flows() []*Flow {
	return c.flows
}

// Fallthrough adds a flow to the following instruction. Its destination is the end
// of this instruction and is resolved once the size is known.
func (c *Code) Fallthrough(cond Condition) *Flow {
	f := &Flow{
		Source: c,
		Type:   Fallthrough,
		Cond:   cond,
	}
	if c.sized {
		f.dst = c.address + c.size
		f.hasDst = true
	} else {
		c.deferred = append(c.deferred, f)
	}
	c.flows = append(c.flows, f)
	return f
}

// To adds a flow with a known destination.
func (c *Code) To(typ FlowType, cond Condition, destination uint64) *Flow {
	f := &Flow{
		Source: c,
		Type:   typ,
		Cond:   cond,
		dst:    destination,
		hasDst: true,
	}
	c.flows = append(c.flows, f)
	return f
}

// Unknown adds a flow with a destination that can not be determined statically,
// like an indirect jump or a return.
func (c *Code) Unknown(typ FlowType, cond Condition) *Flow {
	f := &Flow{
		Source: c,
		Type:   typ,
		Cond:   cond,
	}
	c.flows = append(c.flows, f)
	return f
}

// Propagate schedules all known flow destinations for decoding with the decoder
// of this instruction. Flows that are still waiting for the size are scheduled
// when it is set.
func (c *Code) Propagate(sched Scheduler) {
	c.sched = sched
	for _, f := range c.flows {
		if f.hasDst {
			sched.Todo(f.dst, c.decoder)
		}
	}
}

func (c *Code) String() string {
	return fmt.Sprintf("0x%04x %s", c.address, c.Render())
}

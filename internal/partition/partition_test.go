package partition

import (
	"context"
	"fmt"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/code/mocks"
	"github.com/retroenv/retrorev/internal/job"
	"github.com/retroenv/retrorev/internal/space"
)

// decodeAll decodes every scripted instruction directly into the space.
func decodeAll(t *testing.T, sp space.Space, program map[uint64]mocks.Instruction) []*code.Code {
	t.Helper()

	dec := &mocks.Decoder{Program: program}
	var codes []*code.Code
	for address := range program {
		c, err := dec.Decode(context.Background(), sp, address)
		assert.NoError(t, err)
		codes = append(codes, c)
	}
	return codes
}

// describe returns a deterministic text representation of the result.
func describe(r *Result) []string {
	var lines []string
	for _, g := range r.Groups {
		lines = append(lines, g.String())
		for _, c := range g.Colors() {
			for _, s := range c.Stretches() {
				lines = append(lines, fmt.Sprintf("  color %d %s", c.ID, s))
			}
		}
	}
	for _, e := range r.Edges {
		lines = append(lines, e.String())
	}
	return lines
}

func withCall(size, dst uint64) mocks.Instruction {
	return mocks.Instruction{Name: "call", Size: size, Flows: []mocks.Flow{mocks.Next(), mocks.To(code.Call, dst)}}
}

func withFlows(size uint64, flows ...mocks.Flow) mocks.Instruction {
	return mocks.Instruction{Name: "op", Size: size, Flows: flows}
}

// program has a main routine at 0x00 calling two subroutines and ending in an
// endless loop.
func program() map[uint64]mocks.Instruction {
	return map[uint64]mocks.Instruction{
		0x00: withCall(3, 0x40),
		0x03: withCall(3, 0x60),
		0x06: withFlows(3, mocks.To(code.Jump, 0x80)),
		0x40: withFlows(1, mocks.Next()),
		0x41: withFlows(1, mocks.Ret()),
		0x60: withFlows(2, mocks.Next(), mocks.To(code.CondJump, 0x64)),
		0x62: withFlows(2, mocks.Next()),
		0x64: withFlows(1, mocks.Ret()),
		0x80: withFlows(3, mocks.To(code.Jump, 0x80)),
	}
}

func TestPartition_ThreeInstructions(t *testing.T) {
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	dec := &mocks.Decoder{Program: mocks.ThreeInstructions()}

	j := job.New(logger, sp)
	j.Todo(0x10, dec)
	assert.NoError(t, j.Run(context.Background()))

	result, err := New(logger).Run(sp.All())
	assert.NoError(t, err)

	assert.Len(t, result.Colors, 1)
	assert.Len(t, result.Groups, 1)
	assert.Len(t, result.Stretches, 2)

	color := result.Colors[0]
	assert.Equal(t, result.Groups[0], color.Group())
	assert.Len(t, color.Stretches(), 2)

	first, second := result.Stretches[0], result.Stretches[1]
	assert.Equal(t, uint64(0x10), first.Lo())
	assert.Equal(t, uint64(0x12), first.Hi())
	assert.Len(t, first.Codes(), 2)
	assert.Equal(t, uint64(0x20), second.Lo())
	assert.Len(t, second.Codes(), 1)

	assert.Len(t, first.Out(), 1)
	assert.Equal(t, second, first.Out()[0].Dst)
	assert.Len(t, result.Edges, 2)
}

func TestPartition_Groups(t *testing.T) {
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	codes := decodeAll(t, sp, program())

	result, err := New(logger).Run(sp.All())
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"group 0 0x0000-0x0083",
		"  color 0 stretch 0x0000-0x0003",
		"  color 0 stretch 0x0003-0x0006",
		"  color 0 stretch 0x0006-0x0009",
		"  color 0 stretch 0x0080-0x0083",
		"group 1 0x0040-0x0042",
		"  color 1 stretch 0x0040-0x0042",
		"group 2 0x0060-0x0065",
		"  color 2 stretch 0x0060-0x0062",
		"  color 2 stretch 0x0062-0x0064",
		"  color 2 stretch 0x0064-0x0065",
	}, describe(result)[:11])
	assert.Len(t, result.Stretches, 8)

	var calls []uint64
	for e := range result.Groups[0].Calls() {
		calls = append(calls, e.Dst.Lo())
	}
	assert.Equal(t, []uint64{0x40, 0x60}, calls)

	// every instruction ends up in exactly one stretch of exactly one group
	seen := map[*code.Code]int{}
	for _, g := range result.Groups {
		for _, s := range g.Stretches() {
			for _, c := range s.Codes() {
				seen[c]++
			}
		}
	}
	assert.Len(t, seen, len(codes))
	for _, c := range codes {
		assert.Equal(t, 1, seen[c])
	}
}

func TestPartition_Interleaved(t *testing.T) {
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	decodeAll(t, sp, map[uint64]mocks.Instruction{
		0x00: withCall(3, 0x14),
		0x03: withFlows(3, mocks.To(code.Jump, 0x30)),
		0x10: withFlows(3, mocks.To(code.Jump, 0x18)),
		0x14: withFlows(1, mocks.Ret()),
		0x18: withFlows(1, mocks.Ret()),
		0x30: withFlows(1, mocks.Ret()),
	})

	result, err := New(logger).Run(sp.All())
	assert.NoError(t, err)

	assert.Len(t, result.Colors, 3)
	assert.Len(t, result.Groups, 2)

	residual := result.Groups[0]
	assert.Len(t, residual.Colors(), 2)
	assert.Equal(t, 0, residual.Colors()[0].ID)
	assert.Equal(t, 1, residual.Colors()[1].ID)

	evicted := result.Groups[1]
	assert.Len(t, evicted.Colors(), 1)
	lo, hi := evicted.Bounds()
	assert.Equal(t, uint64(0x14), lo)
	assert.Equal(t, uint64(0x15), hi)
}

func TestPartition_Coloring(t *testing.T) {
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	decodeAll(t, sp, program())

	result, err := New(logger).Run(sp.All())
	assert.NoError(t, err)

	members := map[*Stretch]int{}
	for _, c := range result.Colors {
		for _, s := range c.Stretches() {
			members[s]++
			assert.Equal(t, c, s.Color())
		}
	}
	assert.Len(t, members, len(result.Stretches))
	for _, s := range result.Stretches {
		assert.Equal(t, 1, members[s])
	}
}

func TestPartition_Deterministic(t *testing.T) {
	logger := log.NewTestLogger(t)

	var previous []string
	for range 5 {
		sp := space.NewByteMem("rom", 0, 0x100)
		decodeAll(t, sp, program())

		result, err := New(logger).Run(sp.All())
		assert.NoError(t, err)

		lines := describe(result)
		if previous != nil {
			assert.Equal(t, previous, lines)
		}
		previous = lines
	}
}

func TestPartition_MirroredWindows(t *testing.T) {
	logger := log.NewTestLogger(t)
	ram := space.NewByteMem("ram", 0, 0x100)
	m := space.NewMemMapper("cpu", 0, 0x400)
	for mirror := range uint64(4) {
		assert.NoError(t, m.Map(ram, mirror*0x100, space.Shared()))
	}

	dec := &mocks.Decoder{Program: mocks.ThreeInstructions()}
	j := job.New(logger, m)
	j.Todo(0x10, dec)
	assert.NoError(t, j.Run(context.Background()))

	result, err := New(logger).Run(m.All())
	assert.NoError(t, err)
	assert.Len(t, result.Stretches, 2)
	assert.Len(t, result.Groups, 1)
}

func TestPartition_Empty(t *testing.T) {
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	assert.NoError(t, sp.Insert(space.NewLeaf(sp, 0, 4, space.TagData)))

	result, err := New(logger).Run(sp.All())
	assert.NoError(t, err)
	assert.Len(t, result.Groups, 0)
	assert.Len(t, result.Stretches, 0)
}

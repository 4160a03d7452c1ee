package graph

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/code/mocks"
	"github.com/retroenv/retrorev/internal/job"
	"github.com/retroenv/retrorev/internal/partition"
	"github.com/retroenv/retrorev/internal/space"
	"github.com/zboralski/lattice"
)

func op(size uint64, flows ...mocks.Flow) mocks.Instruction {
	return mocks.Instruction{Name: "op", Size: size, Flows: flows}
}

// build decodes a main routine calling two subroutines and partitions it.
func build(t *testing.T) (*space.ByteMem, *partition.Result) {
	t.Helper()
	logger := log.NewTestLogger(t)
	sp := space.NewByteMem("rom", 0, 0x100)
	assert.NoError(t, sp.SetLabel(0x40, "init"))

	dec := &mocks.Decoder{Program: map[uint64]mocks.Instruction{
		0x00: op(3, mocks.Next(), mocks.To(code.Call, 0x40)),
		0x03: op(3, mocks.Next(), mocks.To(code.Call, 0x60)),
		0x06: op(3, mocks.To(code.Jump, 0x80)),
		0x40: op(1, mocks.Next()),
		0x41: op(1, mocks.Ret()),
		0x60: op(2, mocks.Next(), mocks.To(code.CondJump, 0x64)),
		0x62: op(2, mocks.Next()),
		0x64: op(1, mocks.Ret()),
		0x80: op(3, mocks.To(code.Jump, 0x80)),
	}}
	j := job.New(logger, sp)
	j.Todo(0x00, dec)
	assert.NoError(t, j.Run(context.Background()))

	result, err := partition.New(logger).Run(sp.All())
	assert.NoError(t, err)
	return sp, result
}

func TestBuilder_CallGraph(t *testing.T) {
	sp, result := build(t)
	g := New(sp, result).CallGraph()

	assert.Len(t, g.Nodes, 3)
	for _, name := range []string{"sub_0000", "init", "sub_0060"} {
		assert.True(t, slices.Contains(g.Nodes, name))
	}
	assert.Len(t, g.Edges, 2)
	for _, e := range g.Edges {
		assert.Equal(t, "sub_0000", e.Caller)
	}
}

func TestBuilder_CFG(t *testing.T) {
	sp, result := build(t)
	cfg := New(sp, result).CFG()
	assert.Len(t, cfg.Funcs, 3)

	main := cfg.Funcs[0]
	assert.Equal(t, "sub_0000", main.Name)
	assert.Len(t, main.Blocks, 4)
	assert.Equal(t, []lattice.CallSite{{Offset: 0, Callee: "init"}}, main.Blocks[0].Calls)
	assert.Equal(t, []lattice.CallSite{{Offset: 1, Callee: "sub_0060"}}, main.Blocks[1].Calls)
	assert.Equal(t, []lattice.Successor{{BlockID: 3}}, main.Blocks[3].Succs)
	assert.False(t, main.Blocks[3].Term)

	sub := cfg.Funcs[2]
	assert.Len(t, sub.Blocks, 3)
	assert.Equal(t, []lattice.Successor{{BlockID: 1}, {BlockID: 2, Cond: "T"}}, sub.Blocks[0].Succs)
	assert.True(t, sub.Blocks[2].Term)
	assert.Equal(t, 2, sub.Blocks[2].Start)
	assert.Equal(t, 3, sub.Blocks[2].End)
}

func TestBuilder_DOT(t *testing.T) {
	sp, result := build(t)
	b := New(sp, result)

	var cfg, calls strings.Builder
	assert.NoError(t, b.WriteCFG(&cfg, "cfg"))
	assert.NoError(t, b.WriteCallGraph(&calls, "calls"))
	assert.True(t, strings.Contains(cfg.String(), "digraph"))
	assert.True(t, strings.Contains(calls.String(), "init"))
}

func TestSuccessorCond(t *testing.T) {
	tests := []struct {
		name     string
		flow     code.Flow
		expected string
	}{
		{"taken", code.Flow{Type: code.CondJump, Cond: code.When("eq")}, "T"},
		{"not taken", code.Flow{Type: code.Fallthrough, Cond: code.When("!eq")}, "F"},
		{"fallthrough", code.Flow{Type: code.Fallthrough, Cond: code.Always}, ""},
		{"jump", code.Flow{Type: code.Jump, Cond: code.Always}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, successorCond(&tt.flow))
		})
	}
}

// Package graph exports a partition as lattice control flow and call graphs.
package graph

import (
	"fmt"
	"io"
	"slices"

	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/partition"
	"github.com/retroenv/retrorev/internal/space"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"
)

// Builder converts code groups to lattice graphs. Groups are named after the
// first label at their lowest address.
type Builder struct {
	sp     space.Space
	result *partition.Result
	names  map[*partition.CodeGroup]string
}

// New returns a builder for the partition of the space.
func New(sp space.Space, result *partition.Result) *Builder {
	b := &Builder{
		sp:     sp,
		result: result,
		names:  make(map[*partition.CodeGroup]string, len(result.Groups)),
	}
	for _, g := range result.Groups {
		b.names[g] = b.name(g)
	}
	return b
}

func (b *Builder) name(g *partition.CodeGroup) string {
	lo, _ := g.Bounds()
	if labels := b.sp.Labels(lo); len(labels) > 0 {
		return labels[0]
	}
	return fmt.Sprintf("sub_%04x", lo)
}

// Name returns the name of the group.
func (b *Builder) Name(g *partition.CodeGroup) string {
	return b.names[g]
}

// groups returns all non empty groups.
func (b *Builder) groups() []*partition.CodeGroup {
	return slices.DeleteFunc(slices.Clone(b.result.Groups), func(g *partition.CodeGroup) bool {
		return len(g.Stretches()) == 0
	})
}

// CallGraph returns the call graph between the groups. Calls with unknown
// destination are skipped.
func (b *Builder) CallGraph() *lattice.Graph {
	g := &lattice.Graph{}
	for _, group := range b.groups() {
		caller := b.names[group]
		g.Nodes = append(g.Nodes, caller)
		for e := range group.Calls() {
			if e.Dst == nil {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: caller,
				Callee: b.names[e.Dst.Color().Group()],
			})
		}
	}
	g.Dedup()
	return g
}

// CFG returns one control flow graph per group with a basic block per stretch.
func (b *Builder) CFG() *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, group := range b.groups() {
		cg.Funcs = append(cg.Funcs, b.funcCFG(group))
	}
	return cg
}

func (b *Builder) funcCFG(group *partition.CodeGroup) *lattice.FuncCFG {
	stretches := group.Stretches()
	ids := make(map[*partition.Stretch]int, len(stretches))
	for i, s := range stretches {
		ids[s] = i
	}

	f := &lattice.FuncCFG{Name: b.names[group]}
	start := 0
	for i, s := range stretches {
		block := &lattice.BasicBlock{
			ID:    i,
			Start: start,
			End:   start + len(s.Codes()),
		}

		for _, e := range s.Out() {
			if e.IsCall() {
				if e.Dst == nil {
					continue
				}
				block.Calls = append(block.Calls, lattice.CallSite{
					Offset: start + sourceIndex(s, e),
					Callee: b.names[e.Dst.Color().Group()],
				})
				continue
			}

			id, ok := ids[e.Dst]
			if !ok {
				continue
			}
			block.Succs = append(block.Succs, lattice.Successor{
				BlockID: id,
				Cond:    successorCond(e.Flow),
			})
		}
		block.Term = len(block.Succs) == 0

		f.Blocks = append(f.Blocks, block)
		start = block.End
	}
	return f
}

// sourceIndex returns the index of the instruction of the stretch that the
// edge leaves from.
func sourceIndex(s *partition.Stretch, e *partition.Edge) int {
	if i := slices.Index(s.Codes(), e.Flow.Source); i >= 0 {
		return i
	}
	return len(s.Codes()) - 1
}

// successorCond maps a flow to the lattice successor condition: taken branches
// are "T", conditional fallthroughs "F" and everything else unconditional.
func successorCond(f *code.Flow) string {
	switch {
	case f.Type == code.CondJump:
		return "T"
	case f.Type == code.Fallthrough && f.Cond.Kind != code.AlwaysTrue:
		return "F"
	default:
		return ""
	}
}

// WriteCFG renders the control flow graphs as DOT.
func (b *Builder) WriteCFG(w io.Writer, title string) error {
	if _, err := io.WriteString(w, render.DOTCFG(b.CFG(), title)); err != nil {
		return fmt.Errorf("writing cfg: %w", err)
	}
	return nil
}

// WriteCallGraph renders the call graph as DOT.
func (b *Builder) WriteCallGraph(w io.Writer, title string) error {
	if _, err := io.WriteString(w, render.DOT(b.CallGraph(), title)); err != nil {
		return fmt.Errorf("writing call graph: %w", err)
	}
	return nil
}

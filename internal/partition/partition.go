// Package partition groups decoded instructions into candidate functions by
// coloring the control flow graph.
package partition

import (
	"fmt"
	"iter"
	"slices"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// Result is the outcome of a partitioning run. Groups[0] is the residual group
// that holds all colors that were not evicted.
type Result struct {
	Groups    []*CodeGroup
	Colors    []*Color
	Stretches []*Stretch
	Edges     []*Edge
}

// Partitioner builds stretches, edges, colors and code groups from the code
// leaves of a space.
type Partitioner struct {
	logger *log.Logger
}

// New returns a new partitioner.
func New(logger *log.Logger) *Partitioner {
	return &Partitioner{
		logger: logger,
	}
}

// run holds the state of one partitioning run.
type run struct {
	stretches []*Stretch
	byLo      map[uint64]*Stretch
	edges     []*Edge
	colors    []*Color
	groups    []*CodeGroup
}

// Run partitions all code leaves of the objects. Objects are expected in address
// order as yielded by a space, views are resolved to their code leaves.
func (p *Partitioner) Run(objects iter.Seq[space.Object]) (*Result, error) {
	r := &run{
		byLo: map[uint64]*Stretch{},
	}

	if err := r.seed(objects); err != nil {
		return nil, err
	}
	if len(r.stretches) == 0 {
		return &Result{}, nil
	}

	r.connect()
	r.flood()
	evicted := r.evict()
	merged := r.condense()

	p.logger.Debug("Partitioned code",
		log.Int("stretches", len(r.stretches)),
		log.Int("edges", len(r.edges)),
		log.Int("colors", len(r.colors)),
		log.Int("groups", len(r.groups)),
		log.Int("evicted", evicted),
		log.Int("merged", merged))

	return &Result{
		Groups:    r.groups,
		Colors:    r.colors,
		Stretches: r.stretches,
		Edges:     r.edges,
	}, nil
}

// seed creates one stretch per code leaf. Leaves seen through an alias window at
// another address than they were decoded at are skipped.
func (r *run) seed(objects iter.Seq[space.Object]) error {
	for obj := range objects {
		c, ok := space.Unwrap(obj).(*code.Code)
		if !ok || space.IsForeign(obj) || obj.Lo() != c.Address() {
			continue
		}
		size, sized := c.Size()
		if !sized {
			return fmt.Errorf("%w: unsized instruction at 0x%04x", space.ErrPrecondition, c.Address())
		}
		if _, ok := r.byLo[c.Address()]; ok {
			continue
		}

		s := &Stretch{
			lo:    c.Address(),
			hi:    c.Address() + size,
			codes: []*code.Code{c},
		}
		r.stretches = append(r.stretches, s)
		r.byLo[s.lo] = s
	}

	slices.SortStableFunc(r.stretches, compareStretch)
	return nil
}

// connect creates an edge for every flow and registers it on both ends.
func (r *run) connect() {
	for _, s := range r.stretches {
		for _, f := range s.codes[0].Flows() {
			e := &Edge{
				Flow: f,
				Src:  s,
			}
			if dst, ok := f.Destination(); ok {
				e.Dst = r.byLo[dst]
			}

			s.out = append(s.out, e)
			if e.Dst != nil {
				e.Dst.in = append(e.Dst.in, e)
			}
			r.edges = append(r.edges, e)
		}
	}
}

// flood assigns every stretch to exactly one color by walking non-call edges in
// both directions, starting from the lowest uncolored stretch.
func (r *run) flood() {
	residual := &CodeGroup{ID: 0}
	r.groups = append(r.groups, residual)

	for _, start := range r.stretches {
		if start.color != nil {
			continue
		}

		c := &Color{
			ID:    len(r.colors),
			group: residual,
		}
		r.colors = append(r.colors, c)
		residual.colors = append(residual.colors, c)

		start.color = c
		queue := []*Stretch{start}
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			c.stretches = append(c.stretches, s)

			for _, next := range neighbors(s) {
				if next.color == nil {
					next.color = c
					queue = append(queue, next)
				}
			}
		}
		slices.SortFunc(c.stretches, compareStretch)
	}
}

// neighbors returns the stretches connected to s through non-call edges.
func neighbors(s *Stretch) []*Stretch {
	var result []*Stretch
	for _, e := range s.out {
		if !e.IsCall() && e.Dst != nil {
			result = append(result, e.Dst)
		}
	}
	for _, e := range s.in {
		if !e.IsCall() {
			result = append(result, e.Src)
		}
	}
	return result
}

// evict moves colors of the residual group into groups of their own. A color is
// evicted if no stretch of another color lies within its address range and it
// does not start or end at the bounds of the residual group. It returns the
// number of evicted colors.
func (r *run) evict() int {
	residual := r.groups[0]
	lo, hi := bounds(r.stretches)

	evicted := set.New[*Color]()
	for _, c := range residual.colors {
		clo, chi := c.Bounds()
		if clo == lo || chi == hi {
			continue
		}
		if interleaved(c, r.stretches, clo, chi) {
			continue
		}

		evicted.Add(c)
		g := &CodeGroup{
			ID:     len(r.groups),
			colors: []*Color{c},
		}
		c.group = g
		r.groups = append(r.groups, g)
	}

	residual.colors = slices.DeleteFunc(residual.colors, func(c *Color) bool {
		return evicted.Contains(c)
	})
	return len(r.groups) - 1
}

// interleaved returns whether a stretch of another color starts within [lo,hi).
func interleaved(c *Color, stretches []*Stretch, lo, hi uint64) bool {
	for _, s := range stretches {
		if s.lo >= hi {
			return false
		}
		if s.lo >= lo && s.color != c {
			return true
		}
	}
	return false
}

// condense merges stretches into their unique fallthrough predecessor until no
// further merge is possible. It returns the number of merges.
func (r *run) condense() int {
	merged := 0
	for changed := true; changed; {
		changed = false
		for _, s := range r.stretches {
			if s.dropped {
				continue
			}
			pred, ok := mergeable(s)
			if !ok {
				continue
			}
			r.merge(pred, s)
			merged++
			changed = true
		}
	}

	r.stretches = slices.DeleteFunc(r.stretches, func(s *Stretch) bool { return s.dropped })
	return merged
}

// mergeable returns the predecessor of s if s has exactly one incoming edge, it
// is a fallthrough, and the predecessor has no other outgoing edge.
func mergeable(s *Stretch) (*Stretch, bool) {
	if len(s.in) != 1 {
		return nil, false
	}
	e := s.in[0]
	if e.Flow.Type != code.Fallthrough {
		return nil, false
	}
	pred := e.Src
	if pred == s || pred.dropped || len(pred.out) != 1 || pred.hi != s.lo {
		return nil, false
	}
	return pred, true
}

// merge moves the instructions and incoming edges of pred into s and drops pred.
func (r *run) merge(pred, s *Stretch) {
	link := s.in[0]

	s.lo = pred.lo
	s.codes = append(slices.Clone(pred.codes), s.codes...)
	s.in = pred.in
	for _, e := range s.in {
		e.Dst = s
	}
	for _, e := range s.out {
		if e.Dst == pred {
			e.Dst = s
		}
	}

	pred.dropped = true
	pred.in = nil
	pred.out = nil
	pred.color.remove(pred)

	r.edges = slices.DeleteFunc(r.edges, func(e *Edge) bool { return e == link })
}

package partition

import (
	"fmt"
	"iter"
	"slices"

	"github.com/retroenv/retrorev/internal/code"
)

// Stretch is a run of adjacent instructions without any internal branch.
type Stretch struct {
	lo, hi uint64
	codes  []*code.Code

	in, out []*Edge
	color   *Color
	dropped bool
}

// Lo returns the address of the first instruction.
func (s *Stretch) Lo() uint64 { return s.lo }

// Hi returns the address following the last instruction.
func (s *Stretch) Hi() uint64 { return s.hi }

// Codes returns the instructions in address order.
func (s *Stretch) Codes() []*code.Code { return s.codes }

// In returns the incoming edges.
func (s *Stretch) In() []*Edge { return s.in }

// Out returns the outgoing edges.
func (s *Stretch) Out() []*Edge { return s.out }

// Color returns the color the stretch belongs to.
func (s *Stretch) Color() *Color { return s.color }

func (s *Stretch) String() string {
	return fmt.Sprintf("stretch 0x%04x-0x%04x", s.lo, s.hi)
}

// Edge is a flow between two stretches. The destination is nil for flows whose
// target is unknown or is not a decoded instruction.
type Edge struct {
	Flow *code.Flow
	Src  *Stretch
	Dst  *Stretch
}

// IsCall returns whether the edge enters a subroutine.
func (e *Edge) IsCall() bool {
	return e.Flow.IsCall()
}

func (e *Edge) String() string {
	if e.Dst == nil {
		return fmt.Sprintf("0x%04x %s", e.Src.lo, e.Flow)
	}
	return fmt.Sprintf("0x%04x -> 0x%04x %s", e.Src.lo, e.Dst.lo, e.Flow.Type)
}

// Color is a maximal set of stretches connected through non-call edges.
type Color struct {
	ID        int
	stretches []*Stretch
	group     *CodeGroup
}

// Stretches returns the stretches in address order.
func (c *Color) Stretches() []*Stretch { return c.stretches }

// Group returns the code group that holds the color.
func (c *Color) Group() *CodeGroup { return c.group }

// Bounds returns the lowest and highest address covered by the color.
func (c *Color) Bounds() (uint64, uint64) {
	return bounds(c.stretches)
}

func (c *Color) remove(s *Stretch) {
	c.stretches = slices.DeleteFunc(c.stretches, func(x *Stretch) bool { return x == s })
}

// CodeGroup is a set of colors occupying a self contained address range, a
// candidate function.
type CodeGroup struct {
	ID     int
	colors []*Color
}

// Colors returns the colors of the group.
func (g *CodeGroup) Colors() []*Color { return g.colors }

// Stretches returns all stretches of the group in address order.
func (g *CodeGroup) Stretches() []*Stretch {
	var result []*Stretch
	for _, c := range g.colors {
		result = append(result, c.stretches...)
	}
	slices.SortFunc(result, compareStretch)
	return result
}

// Bounds returns the lowest and highest address covered by the group.
func (g *CodeGroup) Bounds() (uint64, uint64) {
	return bounds(g.Stretches())
}

// Calls returns the outgoing call edges of the group in address order.
func (g *CodeGroup) Calls() iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for _, s := range g.Stretches() {
			for _, e := range s.out {
				if !e.IsCall() {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

func (g *CodeGroup) String() string {
	lo, hi := g.Bounds()
	return fmt.Sprintf("group %d 0x%04x-0x%04x", g.ID, lo, hi)
}

func bounds(stretches []*Stretch) (uint64, uint64) {
	if len(stretches) == 0 {
		return 0, 0
	}
	lo, hi := stretches[0].lo, stretches[0].hi
	for _, s := range stretches[1:] {
		lo = min(lo, s.lo)
		hi = max(hi, s.hi)
	}
	return lo, hi
}

func compareStretch(a, b *Stretch) int {
	switch {
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	default:
		return 0
	}
}

// Package interval provides a recursive split tree that records objects occupying
// half-open address ranges.
package interval

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
)

// DefaultSplitLimit is the node width below which the tree stops splitting.
const DefaultSplitLimit = 128

// ErrPrecondition is returned for inserts that would corrupt the tree.
var ErrPrecondition = errors.New("precondition violation")

// Object is an element that occupies the half-open range [Lo, Hi).
type Object interface {
	Lo() uint64
	Hi() uint64
}

// Option configures a Store.
type Option func(*config)

type config struct {
	splitLimit uint64
}

// WithSplitLimit sets the node width below which nodes no longer split.
// It only affects performance, never query results.
func WithSplitLimit(limit uint64) Option {
	return func(c *config) {
		if limit > 1 {
			c.splitLimit = limit
		}
	}
}

// Store is an append-only interval tree. A node covers [lo,hi) and splits at mid,
// objects straddling mid stay at the node, all others descend into the half they
// fit in.
type Store[T Object] struct {
	root       *node[T]
	splitLimit uint64
	count      int
}

type node[T Object] struct {
	lo, mid, hi uint64

	objs []T
	less *node[T] // [lo, mid)
	more *node[T] // [mid, hi)
}

// Buckets partitions the objects intersecting a range query.
type Buckets[T Object] struct {
	Containing []T // object is strictly wider than the query on at least one side
	Equal      []T // object bounds match the query exactly
	Contained  []T // object lies within the query, exact matches included
	Partial    []T // object overlaps one end of the query only
}

// New returns a store covering [lo,hi).
func New[T Object](lo, hi uint64, opts ...Option) *Store[T] {
	cfg := config{splitLimit: DefaultSplitLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store[T]{
		splitLimit: cfg.splitLimit,
	}
	s.root = s.newNode(lo, hi)
	return s
}

// Bounds returns the range covered by the store.
func (s *Store[T]) Bounds() (uint64, uint64) {
	return s.root.lo, s.root.hi
}

// Len returns the number of stored objects.
func (s *Store[T]) Len() int {
	return s.count
}

// Insert adds an object to the store. An empty or inverted range, or a range
// outside of the store bounds, is a precondition violation.
func (s *Store[T]) Insert(obj T) error {
	lo, hi := obj.Lo(), obj.Hi()
	if lo >= hi {
		return fmt.Errorf("%w: empty range [%#x,%#x)", ErrPrecondition, lo, hi)
	}
	if lo < s.root.lo || hi > s.root.hi {
		return fmt.Errorf("%w: range [%#x,%#x) outside of [%#x,%#x)",
			ErrPrecondition, lo, hi, s.root.lo, s.root.hi)
	}

	n := s.root
	for s.splits(n) {
		switch {
		case hi <= n.mid:
			if n.less == nil {
				n.less = s.newNode(n.lo, n.mid)
			}
			n = n.less
		case lo >= n.mid:
			if n.more == nil {
				n.more = s.newNode(n.mid, n.hi)
			}
			n = n.more
		default:
			n.objs = append(n.objs, obj)
			s.count++
			return nil
		}
	}

	n.objs = append(n.objs, obj)
	s.count++
	return nil
}

// FindLo returns all objects starting at the given address.
func (s *Store[T]) FindLo(address uint64) []T {
	var result []T
	for n := range s.path(address) {
		for _, obj := range n.objs {
			if obj.Lo() == address {
				result = append(result, obj)
			}
		}
	}
	slices.SortStableFunc(result, Compare[T])
	return result
}

// FindHi returns all objects ending at the given address.
func (s *Store[T]) FindHi(address uint64) []T {
	if address == 0 {
		return nil
	}

	var result []T
	for n := range s.path(address - 1) {
		for _, obj := range n.objs {
			if obj.Hi() == address {
				result = append(result, obj)
			}
		}
	}
	slices.SortStableFunc(result, Compare[T])
	return result
}

// FindRange returns all objects intersecting [lo,hi) partitioned by their relation
// to the query range.
func (s *Store[T]) FindRange(lo, hi uint64) Buckets[T] {
	return Classify(s.intersecting(lo, hi), lo, hi)
}

// Classify sorts objects into the buckets of a [lo,hi) query. Objects that do not
// intersect the query are skipped.
func Classify[T Object](objs []T, lo, hi uint64) Buckets[T] {
	var b Buckets[T]
	for _, obj := range objs {
		olo, ohi := obj.Lo(), obj.Hi()
		switch {
		case olo >= hi || ohi <= lo:
			continue
		case olo == lo && ohi == hi:
			b.Equal = append(b.Equal, obj)
			b.Contained = append(b.Contained, obj)
		case olo >= lo && ohi <= hi:
			b.Contained = append(b.Contained, obj)
		case olo <= lo && ohi >= hi:
			b.Containing = append(b.Containing, obj)
		default:
			b.Partial = append(b.Partial, obj)
		}
	}
	return b
}

// Range returns an ordered iterator over all objects intersecting [lo,hi).
func (s *Store[T]) Range(lo, hi uint64) iter.Seq[T] {
	objs := s.intersecting(lo, hi)
	return func(yield func(T) bool) {
		for _, obj := range objs {
			if !yield(obj) {
				return
			}
		}
	}
}

// All returns an iterator over all objects, ordered by ascending lo and for equal
// lo by descending hi.
func (s *Store[T]) All() iter.Seq[T] {
	lo, hi := s.Bounds()
	return s.Range(lo, hi)
}

// Compare orders objects by ascending lo, ties broken by descending hi.
func Compare[T Object](a, b T) int {
	if c := cmp.Compare(a.Lo(), b.Lo()); c != 0 {
		return c
	}
	return cmp.Compare(b.Hi(), a.Hi())
}

// intersecting collects the objects overlapping [lo,hi) using an explicit stack
// so that degenerate trees can not exhaust the call stack.
func (s *Store[T]) intersecting(lo, hi uint64) []T {
	if lo >= hi {
		return nil
	}

	var result []T
	stack := []*node[T]{s.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.lo >= hi || n.hi <= lo {
			continue
		}

		for _, obj := range n.objs {
			if obj.Lo() < hi && obj.Hi() > lo {
				result = append(result, obj)
			}
		}
		if n.more != nil {
			stack = append(stack, n.more)
		}
		if n.less != nil {
			stack = append(stack, n.less)
		}
	}

	slices.SortStableFunc(result, Compare[T])
	return result
}

// path yields the nodes on the descent towards address.
func (s *Store[T]) path(address uint64) iter.Seq[*node[T]] {
	return func(yield func(*node[T]) bool) {
		n := s.root
		if address < n.lo || address >= n.hi {
			return
		}
		for n != nil {
			if !yield(n) {
				return
			}
			if !s.splits(n) {
				return
			}
			if address < n.mid {
				n = n.less
			} else {
				n = n.more
			}
		}
	}
}

func (s *Store[T]) splits(n *node[T]) bool {
	return n.hi-n.lo >= s.splitLimit
}

func (s *Store[T]) newNode(lo, hi uint64) *node[T] {
	return &node[T]{
		lo:  lo,
		mid: lo + (hi-lo)/2,
		hi:  hi,
	}
}

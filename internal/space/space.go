// Package space provides address spaces that record discovered objects, the backing
// stores holding memory content and a mapper composing backing stores into banked
// windows.
package space

import (
	"cmp"
	"iter"
	"slices"

	"github.com/retroenv/retrorev/internal/interval"
)

// Memory is the word access surface every backing store provides.
type Memory interface {
	// Bounds returns the half-open range of valid addresses.
	Bounds() (uint64, uint64)
	// Width returns the word width in bits.
	Width() uint
	// Read returns the word at the given address.
	Read(address uint64) (uint64, error)
	// Write stores a word at the given address.
	Write(address, value uint64) error
}

// Space is a bounded, labeled and commentable store of objects with memory content.
// Decoders access memory exclusively through this interface so that they work
// unchanged on plain and banked layouts.
type Space interface {
	Memory

	Name() string

	Insert(obj Object) error
	FindLo(address uint64) []Object
	FindHi(address uint64) []Object
	FindRange(lo, hi uint64) interval.Buckets[Object]
	All() iter.Seq[Object]

	SetLabel(address uint64, name string) error
	Labels(address uint64) []string
	SetLineComment(address uint64, comment string) error
	LineComments(address uint64) []string
	SetBlockComment(address uint64, comment string) error
	BlockComments(address uint64) []string

	AddRange(lo, hi uint64, text string)
	Ranges() []Range
}

// Range is an advisory named address range used for display grouping only.
type Range struct {
	Lo, Hi uint64
	Text   string
}

// AddressSpace holds the objects, labels and comments of one address range.
// It carries no memory content, concrete spaces embed it.
type AddressSpace struct {
	name   string
	lo, hi uint64

	store *interval.Store[Object]

	labels        notes
	lineComments  notes
	blockComments notes
	ranges        []Range
}

// notes is an append-only list of strings per address.
type notes map[uint64][]string

func (n notes) add(address uint64, s string) {
	n[address] = append(n[address], s)
}

func (n notes) get(address uint64) []string {
	return slices.Clone(n[address])
}

// NewAddressSpace returns an address space covering [lo,hi).
func NewAddressSpace(name string, lo, hi uint64, opts ...interval.Option) *AddressSpace {
	return &AddressSpace{
		name:          name,
		lo:            lo,
		hi:            hi,
		store:         interval.New[Object](lo, hi, opts...),
		labels:        notes{},
		lineComments:  notes{},
		blockComments: notes{},
	}
}

// Name returns the name of the space.
func (a *AddressSpace) Name() string {
	return a.name
}

// Bounds returns the half-open range of valid addresses.
func (a *AddressSpace) Bounds() (uint64, uint64) {
	return a.lo, a.hi
}

// Contains returns whether the address is inside the bounds of the space.
func (a *AddressSpace) Contains(address uint64) bool {
	return address >= a.lo && address < a.hi
}

func (a *AddressSpace) check(op string, address uint64) error {
	if !a.Contains(address) {
		return addressError(op, a.name, address, ErrOutOfRange)
	}
	return nil
}

// Insert adds an object to the space.
func (a *AddressSpace) Insert(obj Object) error {
	lo, hi := obj.Lo(), obj.Hi()
	if lo < hi && (lo < a.lo || hi > a.hi) {
		return addressError("insert", a.name, lo, ErrOutOfRange)
	}
	if err := a.store.Insert(obj); err != nil {
		return addressError("insert", a.name, lo, err)
	}
	obj.Base().inserted = true
	return nil
}

// FindLo returns all objects starting at the address.
func (a *AddressSpace) FindLo(address uint64) []Object {
	return a.store.FindLo(address)
}

// FindHi returns all objects ending at the address.
func (a *AddressSpace) FindHi(address uint64) []Object {
	return a.store.FindHi(address)
}

// FindRange returns all objects intersecting [lo,hi) partitioned by their relation
// to the range.
func (a *AddressSpace) FindRange(lo, hi uint64) interval.Buckets[Object] {
	return a.store.FindRange(lo, hi)
}

// All returns an iterator over all objects in address order.
func (a *AddressSpace) All() iter.Seq[Object] {
	return a.store.All()
}

// Len returns the number of objects stored in the space.
func (a *AddressSpace) Len() int {
	return a.store.Len()
}

// SetLabel appends a label for the address. Multiple labels per address are kept
// in the order they were added.
func (a *AddressSpace) SetLabel(address uint64, name string) error {
	if err := a.check("label", address); err != nil {
		return err
	}
	a.labels.add(address, name)
	return nil
}

// Labels returns the labels of the address.
func (a *AddressSpace) Labels(address uint64) []string {
	return a.labels.get(address)
}

// SetLineComment appends a comment rendered on the line of the address.
func (a *AddressSpace) SetLineComment(address uint64, comment string) error {
	if err := a.check("comment", address); err != nil {
		return err
	}
	a.lineComments.add(address, comment)
	return nil
}

// LineComments returns the line comments of the address.
func (a *AddressSpace) LineComments(address uint64) []string {
	return a.lineComments.get(address)
}

// SetBlockComment appends a comment rendered above the address.
func (a *AddressSpace) SetBlockComment(address uint64, comment string) error {
	if err := a.check("comment", address); err != nil {
		return err
	}
	a.blockComments.add(address, comment)
	return nil
}

// BlockComments returns the block comments of the address.
func (a *AddressSpace) BlockComments(address uint64) []string {
	return a.blockComments.get(address)
}

// AddRange records an advisory named range. It never affects analysis.
func (a *AddressSpace) AddRange(lo, hi uint64, text string) {
	a.ranges = append(a.ranges, Range{Lo: lo, Hi: hi, Text: text})
}

// Ranges returns the advisory ranges ordered by address.
func (a *AddressSpace) Ranges() []Range {
	ranges := slices.Clone(a.ranges)
	slices.SortStableFunc(ranges, func(x, y Range) int {
		if c := cmp.Compare(x.Lo, y.Lo); c != 0 {
			return c
		}
		return cmp.Compare(y.Hi, x.Hi)
	})
	return ranges
}

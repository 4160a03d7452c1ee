package space

import (
	"fmt"

	"github.com/retroenv/retrorev/internal/interval"
)

// WordMem is an address space backed by words of 1 to 64 bits. It has no native
// bulk access, multi-word reads are composed from single words.
type WordMem struct {
	*AddressSpace

	width uint
	data  []uint64
}

var _ Space = (*WordMem)(nil)

// NewWordMem returns a zero filled memory of the given word width covering [lo,hi).
func NewWordMem(name string, lo, hi uint64, width uint, opts ...interval.Option) (*WordMem, error) {
	if width == 0 || width > 64 {
		return nil, fmt.Errorf("%w: invalid word width %d", ErrPrecondition, width)
	}
	if hi < lo {
		return nil, fmt.Errorf("%w: inverted bounds [%#x,%#x)", ErrPrecondition, lo, hi)
	}

	return &WordMem{
		AddressSpace: NewAddressSpace(name, lo, hi, opts...),
		width:        width,
		data:         make([]uint64, hi-lo),
	}, nil
}

// Width returns the word width in bits.
func (m *WordMem) Width() uint {
	return m.width
}

// Read returns the word at the given address.
func (m *WordMem) Read(address uint64) (uint64, error) {
	if err := m.check("read", address); err != nil {
		return 0, err
	}
	return m.data[address-m.lo], nil
}

// Write stores a word at the given address.
func (m *WordMem) Write(address, value uint64) error {
	if err := m.check("write", address); err != nil {
		return err
	}
	if !fits(value, m.width) {
		return addressError("write", m.name, address, ErrValueTooWide)
	}
	m.data[address-m.lo] = value
	return nil
}

// Load stores consecutive words starting at the given address.
func (m *WordMem) Load(address uint64, words []uint64) error {
	for i, value := range words {
		if err := m.Write(address+uint64(i), value); err != nil {
			return fmt.Errorf("loading word %d: %w", i, err)
		}
	}
	return nil
}

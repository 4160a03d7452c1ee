package space

import (
	"encoding/binary"
	"fmt"

	"github.com/retroenv/retrorev/internal/interval"
)

// ByteMem is an address space backed by 8 bit words.
type ByteMem struct {
	*AddressSpace

	data []byte
}

var (
	_ Space = (*ByteMem)(nil)
	_ Bulk  = (*ByteMem)(nil)
)

// NewByteMem returns a zero filled byte memory covering [lo,hi).
func NewByteMem(name string, lo, hi uint64, opts ...interval.Option) *ByteMem {
	return &ByteMem{
		AddressSpace: NewAddressSpace(name, lo, hi, opts...),
		data:         make([]byte, hi-lo),
	}
}

// NewByteMemFrom returns a byte memory starting at lo that holds a copy of data.
func NewByteMemFrom(name string, lo uint64, data []byte, opts ...interval.Option) *ByteMem {
	m := NewByteMem(name, lo, lo+uint64(len(data)), opts...)
	copy(m.data, data)
	return m
}

// Width returns the word width in bits.
func (m *ByteMem) Width() uint {
	return 8
}

// Read returns the byte at the given address.
func (m *ByteMem) Read(address uint64) (uint64, error) {
	if err := m.check("read", address); err != nil {
		return 0, err
	}
	return uint64(m.data[address-m.lo]), nil
}

// Write stores a byte at the given address.
func (m *ByteMem) Write(address, value uint64) error {
	if err := m.check("write", address); err != nil {
		return err
	}
	if !fits(value, 8) {
		return addressError("write", m.name, address, ErrValueTooWide)
	}
	m.data[address-m.lo] = byte(value)
	return nil
}

// Load copies data into the memory starting at the given address.
func (m *ByteMem) Load(address uint64, data []byte) error {
	if err := m.span("load", address, len(data)); err != nil {
		return err
	}
	copy(m.data[address-m.lo:], data)
	return nil
}

// Bytes returns a copy of n bytes starting at the given address.
func (m *ByteMem) Bytes(address uint64, n int) ([]byte, error) {
	if err := m.span("read", address, n); err != nil {
		return nil, err
	}
	start := address - m.lo
	data := make([]byte, n)
	copy(data, m.data[start:start+uint64(n)])
	return data, nil
}

// BE16 reads a big endian 16 bit value.
func (m *ByteMem) BE16(address uint64) (uint16, error) {
	b, err := m.Bytes(address, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// LE16 reads a little endian 16 bit value.
func (m *ByteMem) LE16(address uint64) (uint16, error) {
	b, err := m.Bytes(address, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// BE32 reads a big endian 32 bit value.
func (m *ByteMem) BE32(address uint64) (uint32, error) {
	b, err := m.Bytes(address, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// LE32 reads a little endian 32 bit value.
func (m *ByteMem) LE32(address uint64) (uint32, error) {
	b, err := m.Bytes(address, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// span checks that n bytes starting at address are inside the memory and reports
// the first address outside of it.
func (m *ByteMem) span(op string, address uint64, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrPrecondition, n)
	}
	if err := m.check(op, address); err != nil {
		return err
	}
	if end := address + uint64(n); end > m.hi {
		return addressError(op, m.name, m.hi, ErrOutOfRange)
	}
	return nil
}

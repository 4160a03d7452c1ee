package space

import (
	"fmt"
)

// Bulk is the optional multi-word access surface of a backing store. Stores that
// do not implement it are served by composing single word reads.
type Bulk interface {
	Bytes(address uint64, n int) ([]byte, error)
	BE16(address uint64) (uint16, error)
	LE16(address uint64) (uint16, error)
	BE32(address uint64) (uint32, error)
	LE32(address uint64) (uint32, error)
}

// Bytes reads n consecutive words that each fit into a byte.
func Bytes(m Memory, address uint64, n int) ([]byte, error) {
	if b, ok := m.(Bulk); ok {
		return b.Bytes(address, n)
	}
	return readBytes(m, address, n)
}

// BE16 reads a big endian 16 bit value.
func BE16(m Memory, address uint64) (uint16, error) {
	if b, ok := m.(Bulk); ok {
		return b.BE16(address)
	}
	v, err := readUint(m, address, 16, true)
	return uint16(v), err
}

// LE16 reads a little endian 16 bit value.
func LE16(m Memory, address uint64) (uint16, error) {
	if b, ok := m.(Bulk); ok {
		return b.LE16(address)
	}
	v, err := readUint(m, address, 16, false)
	return uint16(v), err
}

// BE32 reads a big endian 32 bit value.
func BE32(m Memory, address uint64) (uint32, error) {
	if b, ok := m.(Bulk); ok {
		return b.BE32(address)
	}
	v, err := readUint(m, address, 32, true)
	return uint32(v), err
}

// LE32 reads a little endian 32 bit value.
func LE32(m Memory, address uint64) (uint32, error) {
	if b, ok := m.(Bulk); ok {
		return b.LE32(address)
	}
	v, err := readUint(m, address, 32, false)
	return uint32(v), err
}

// readUint composes a value of the given bit size from consecutive words of the
// memory word width.
func readUint(m Memory, address uint64, bits uint, bigEndian bool) (uint64, error) {
	width := m.Width()
	if width == 0 || width > bits || bits%width != 0 {
		return 0, fmt.Errorf("%w: reading %d bits from %d bit words", ErrPrecondition, bits, width)
	}

	words := uint64(bits / width)
	var value uint64
	for i := range words {
		word, err := m.Read(address + i)
		if err != nil {
			return 0, err
		}
		shift := i * uint64(width)
		if bigEndian {
			shift = (words - 1 - i) * uint64(width)
		}
		value |= word << shift
	}
	return value, nil
}

func readBytes(m Memory, address uint64, n int) ([]byte, error) {
	data := make([]byte, n)
	for i := range data {
		word, err := m.Read(address + uint64(i))
		if err != nil {
			return nil, err
		}
		if word > 0xff {
			return nil, addressError("read", "", address+uint64(i), ErrValueTooWide)
		}
		data[i] = byte(word)
	}
	return data, nil
}

// fits returns whether the value can be stored in a word of the given width.
func fits(value uint64, width uint) bool {
	return width >= 64 || value>>width == 0
}

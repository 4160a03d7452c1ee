package space

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestAddressSpace_Notes(t *testing.T) {
	as := NewAddressSpace("ram", 0x100, 0x200)

	assert.NoError(t, as.SetLabel(0x100, "start"))
	assert.NoError(t, as.SetLabel(0x100, "reset"))
	assert.Equal(t, []string{"start", "reset"}, as.Labels(0x100))
	assert.Len(t, as.Labels(0x101), 0)

	assert.NoError(t, as.SetLineComment(0x110, "a"))
	assert.NoError(t, as.SetLineComment(0x110, "b"))
	assert.Equal(t, []string{"a", "b"}, as.LineComments(0x110))

	assert.NoError(t, as.SetBlockComment(0x1ff, "block"))
	assert.Equal(t, []string{"block"}, as.BlockComments(0x1ff))

	err := as.SetLabel(0x200, "outside")
	assert.True(t, errors.Is(err, ErrOutOfRange))
	var addrErr *AddressError
	assert.True(t, errors.As(err, &addrErr))
	assert.Equal(t, uint64(0x200), addrErr.Addr)
	assert.Equal(t, "ram", addrErr.Space)

	labels := as.Labels(0x100)
	labels[0] = "modified"
	assert.Equal(t, []string{"start", "reset"}, as.Labels(0x100))
}

func TestAddressSpace_Ranges(t *testing.T) {
	as := NewAddressSpace("rom", 0, 0x100)
	as.AddRange(0x40, 0x50, "table")
	as.AddRange(0x00, 0x10, "header")
	as.AddRange(0x00, 0x40, "init")

	assert.Equal(t, []Range{
		{Lo: 0x00, Hi: 0x40, Text: "init"},
		{Lo: 0x00, Hi: 0x10, Text: "header"},
		{Lo: 0x40, Hi: 0x50, Text: "table"},
	}, as.Ranges())
}

func TestAddressSpace_Insert(t *testing.T) {
	mem := NewByteMem("rom", 0x10, 0x20)

	leaf := NewLeaf(mem, 0x10, 0x12, TagData)
	assert.NoError(t, mem.Insert(leaf))
	assert.True(t, leaf.Inserted())
	assert.Equal(t, []Object{leaf}, mem.FindLo(0x10))
	assert.Equal(t, []Object{leaf}, mem.FindHi(0x12))

	err := leaf.Resize(0x14)
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.Equal(t, uint64(0x12), leaf.Hi())

	err = mem.Insert(NewLeaf(mem, 0x14, 0x14, TagData))
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.False(t, IsRecoverable(err))

	err = mem.Insert(NewLeaf(mem, 0x1f, 0x21, TagData))
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, 1, mem.Len())
}

func TestLeaf_Render(t *testing.T) {
	leaf := NewLeaf(nil, 0, 1, TagCode)
	assert.Equal(t, "<code>", leaf.Render())

	leaf.SetText("nop")
	leaf.SetCompact(true)
	leaf.AddLineComment("first")
	leaf.AddBlockComment("block")
	assert.Equal(t, "nop", leaf.Render())
	assert.True(t, leaf.Compact())
	assert.Equal(t, []string{"first"}, leaf.LineComments())
	assert.Equal(t, []string{"block"}, leaf.BlockComments())
	assert.Equal(t, "<code 0x0000-0x0001>", leaf.String())
}

func TestByteMem(t *testing.T) {
	mem := NewByteMemFrom("rom", 0x8000, []byte{0x12, 0x34, 0x56, 0x78})

	tests := []struct {
		name     string
		read     func() (uint64, error)
		expected uint64
	}{
		{"read", func() (uint64, error) { return mem.Read(0x8001) }, 0x34},
		{"be16", func() (uint64, error) { v, err := BE16(mem, 0x8000); return uint64(v), err }, 0x1234},
		{"le16", func() (uint64, error) { v, err := LE16(mem, 0x8000); return uint64(v), err }, 0x3412},
		{"be32", func() (uint64, error) { v, err := BE32(mem, 0x8000); return uint64(v), err }, 0x12345678},
		{"le32", func() (uint64, error) { v, err := LE32(mem, 0x8000); return uint64(v), err }, 0x78563412},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.read()
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}

	_, err := mem.Read(0x8004)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = LE16(mem, 0x8003)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	err = mem.Write(0x8000, 0x100)
	assert.True(t, errors.Is(err, ErrValueTooWide))
	assert.False(t, IsRecoverable(err))

	assert.NoError(t, mem.Load(0x8002, []byte{0xaa, 0xbb}))
	b, err := Bytes(mem, 0x8000, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0xaa, 0xbb}, b)

	err = mem.Load(0x8003, []byte{1, 2})
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestWordMem(t *testing.T) {
	_, err := NewWordMem("bad", 0, 0x10, 65)
	assert.True(t, errors.Is(err, ErrPrecondition))

	mem, err := NewWordMem("dsp", 0, 0x10, 12)
	assert.NoError(t, err)
	assert.Equal(t, uint(12), mem.Width())

	assert.NoError(t, mem.Write(0, 0xfff))
	err = mem.Write(0, 0x1000)
	assert.True(t, errors.Is(err, ErrValueTooWide))

	value, err := mem.Read(0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xfff), value)

	// composed reads require the value size to be a multiple of the word width
	_, err = BE16(mem, 0)
	assert.True(t, errors.Is(err, ErrPrecondition))

	wide, err := NewWordMem("wide", 0, 4, 64)
	assert.NoError(t, err)
	assert.NoError(t, wide.Write(3, ^uint64(0)))

	nibbles, err := NewWordMem("nibbles", 0, 8, 4)
	assert.NoError(t, err)
	assert.NoError(t, nibbles.Load(0, []uint64{0x1, 0x2, 0x3, 0x4}))

	be, err := BE16(nibbles, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1234), be)

	le, err := LE16(nibbles, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x4321), le)

	b, err := Bytes(nibbles, 0, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x1, 0x2}, b)
}

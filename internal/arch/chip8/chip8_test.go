package chip8

import (
	"context"
	"errors"
	"testing"

	chip8cpu "github.com/retroenv/retrogolib/arch/cpu/chip8"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/job"
	"github.com/retroenv/retrorev/internal/space"
)

func newMemory(t *testing.T, program []byte) *space.ByteMem {
	t.Helper()
	mem := space.NewByteMem("ram", ProgramStart, MaxAddress+1)
	assert.NoError(t, mem.Load(ProgramStart, program))
	return mem
}

func TestDecoder_Program(t *testing.T) {
	mem := newMemory(t, []byte{
		0x60, 0x05, // 0x200 ld V0, $05
		0x22, 0x08, // 0x202 call $208
		0x12, 0x04, // 0x204 jp $204
		0x00, 0x00, // 0x206
		0x30, 0x01, // 0x208 se V0, $01
		0xA2, 0x10, // 0x20a ld I, $210
		0x00, 0xEE, // 0x20c ret
	})

	dec := New()
	j := job.New(log.NewTestLogger(t), mem)
	j.Todo(dec.Entry(), dec)
	assert.NoError(t, j.Run(context.Background()))

	var addresses []uint64
	for obj := range mem.All() {
		addresses = append(addresses, obj.Lo())
	}
	assert.Equal(t, []uint64{0x200, 0x202, 0x204, 0x208, 0x20a, 0x20c}, addresses)

	call := mem.FindLo(0x202)[0].(*code.Code)
	assert.Equal(t, chip8cpu.CallName+" $208", call.Render())
	assert.Len(t, call.Flows(), 2)
	assert.Equal(t, code.Call, call.Flows()[0].Type)

	skip := mem.FindLo(0x208)[0].(*code.Code)
	assert.Len(t, skip.Flows(), 2)
	dst, ok := skip.Flows()[1].Destination()
	assert.True(t, ok)
	assert.Equal(t, uint64(0x20c), dst)
	assert.Equal(t, code.CondJump, skip.Flows()[1].Type)

	assert.Equal(t, []string{"data_210"}, mem.Labels(0x210))
}

func TestDecoder_Flows(t *testing.T) {
	tests := []struct {
		name     string
		opcode   []byte
		expected []string
	}{
		{"jump", []byte{0x12, 0x40}, []string{"jump 0x0240"}},
		{"jump into interpreter", []byte{0x11, 0x00}, []string{"jump ?"}},
		{"indirect jump", []byte{0xB2, 0x40}, []string{"jump ?"}},
		{"call", []byte{0x22, 0x40}, []string{"call 0x0240", "fallthrough 0x0202"}},
		{"return", []byte{0x00, 0xEE}, []string{"return"}},
		{"draw", []byte{0xD0, 0x15}, []string{"fallthrough 0x0202"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMemory(t, tt.opcode)
			c, err := New().Decode(context.Background(), mem, ProgramStart)
			assert.NoError(t, err)
			assert.NotNil(t, c)

			var flows []string
			for _, f := range c.Flows() {
				flows = append(flows, f.String())
			}
			assert.Equal(t, tt.expected, flows)
		})
	}
}

func TestDecoder_UnknownOpcode(t *testing.T) {
	mem := newMemory(t, []byte{0x50, 0x01})

	c, err := New().Decode(context.Background(), mem, ProgramStart)
	assert.NoError(t, err)
	assert.Nil(t, c)

	objs := mem.FindLo(ProgramStart)
	assert.Len(t, objs, 1)
	assert.Equal(t, space.TagData, objs[0].Tag())
	assert.Equal(t, ".word $5001", objs[0].Render())
}

func TestDecoder_OutOfRange(t *testing.T) {
	mem := newMemory(t, nil)

	_, err := New().Decode(context.Background(), mem, MaxAddress)
	assert.True(t, errors.Is(err, space.ErrOutOfRange))
	assert.True(t, space.IsRecoverable(err))
}

func TestFormatInstruction(t *testing.T) {
	tests := []struct {
		name     string
		opcode   uint16
		expected string
	}{
		{chip8cpu.ClsName, 0x00E0, ""},
		{chip8cpu.JpName, 0x1234, "$234"},
		{chip8cpu.JpName, 0xB234, "V0, $234"},
		{chip8cpu.SeName, 0x3A12, "VA, $12"},
		{chip8cpu.SneName, 0x9AB0, "VA, VB"},
		{chip8cpu.LdName, 0xA123, "I, $123"},
		{chip8cpu.AddName, 0x7105, "V1, $05"},
		{chip8cpu.XorName, 0x8123, "V1, V2"},
		{chip8cpu.ShrName, 0x8106, "V1"},
		{chip8cpu.RndName, 0xC3FF, "V3, $FF"},
		{chip8cpu.DrwName, 0xD125, "V1, V2, $5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatInstruction(tt.name, tt.opcode))
		})
	}
}

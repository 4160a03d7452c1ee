package consts

import (
	"testing"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/assert"
)

func TestNew(t *testing.T) {
	t.Run("merges read and write names", func(t *testing.T) {
		consts, err := New(
			map[uint16]cpu6502.AccessModeConstant{0x2002: {Constant: "PPU_STATUS", Mode: cpu6502.ReadAccess}},
			map[uint16]cpu6502.AccessModeConstant{0x2002: {Constant: "PPU_STATUS_W", Mode: cpu6502.WriteAccess}},
		)
		assert.NoError(t, err)

		status, ok := consts.Get(0x2002)
		assert.True(t, ok)
		assert.Equal(t, Constant{Address: 0x2002, Read: "PPU_STATUS", Write: "PPU_STATUS_W"}, status)
	})

	t.Run("returns error for duplicate definitions", func(t *testing.T) {
		source := map[uint16]cpu6502.AccessModeConstant{0x2000: {Constant: "PPU_CTRL", Mode: cpu6502.WriteAccess}}

		consts, err := New(source, source)

		assert.Error(t, err)
		assert.True(t, consts == nil)
	})
}

func TestNES(t *testing.T) {
	consts, err := NES()
	assert.NoError(t, err)

	for _, address := range []uint64{0x2000, 0x2002, 0x4016} {
		constant, ok := consts.Get(address)
		assert.True(t, ok)
		assert.True(t, constant.Read != "" || constant.Write != "")
	}
	_, ok := consts.Get(0x8000)
	assert.False(t, ok)
}

func TestReplaceParameter(t *testing.T) {
	tests := []struct {
		name       string
		constant   Constant
		reads      bool
		writes     bool
		param      string
		wantResult string
		shouldMark bool
	}{
		{
			name:       "replaces read parameter",
			constant:   Constant{Address: 0x2000, Read: "PPU_CTRL", Write: "PPU_CTRL_W"},
			reads:      true,
			param:      "$2000",
			wantResult: "PPU_CTRL",
			shouldMark: true,
		},
		{
			name:       "replaces write parameter",
			constant:   Constant{Address: 0x2000, Read: "PPU_CTRL", Write: "PPU_CTRL_W"},
			writes:     true,
			param:      "a:$2000",
			wantResult: "PPU_CTRL_W",
			shouldMark: true,
		},
		{
			name:       "replaces indexed parameter",
			constant:   Constant{Address: 0x2000, Read: "PPU_CTRL"},
			reads:      true,
			param:      "$2000,X",
			wantResult: "PPU_CTRL,X",
			shouldMark: true,
		},
		{
			name:       "no replacement when name missing",
			constant:   Constant{Address: 0x2000, Read: "PPU_CTRL"},
			writes:     true,
			param:      "$2000",
			wantResult: "$2000",
			shouldMark: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consts, err := New()
			assert.NoError(t, err)
			consts.Set(tt.constant.Address, tt.constant)

			result, ok := consts.ReplaceParameter(tt.constant.Address, tt.reads, tt.writes, tt.param)

			assert.True(t, ok)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.shouldMark, consts.IsUsed(tt.constant.Address))
		})
	}

	t.Run("non-existent constant", func(t *testing.T) {
		consts, err := New()
		assert.NoError(t, err)

		result, ok := consts.ReplaceParameter(0x8000, true, false, "$8000")

		assert.False(t, ok)
		assert.Equal(t, "", result)
	})
}

func TestSortedUsed(t *testing.T) {
	consts, err := New()
	assert.NoError(t, err)
	consts.Set(0x2001, Constant{Address: 0x2001, Write: "PPU_MASK"})
	consts.Set(0x2000, Constant{Address: 0x2000, Write: "PPU_CTRL"})
	consts.Set(0x4016, Constant{Address: 0x4016, Read: "JOYPAD1"})

	_, _ = consts.ReplaceParameter(0x4016, true, false, "$4016")
	_, _ = consts.ReplaceParameter(0x2000, false, true, "$2000")

	used := consts.SortedUsed()
	assert.Len(t, used, 2)
	assert.Equal(t, uint64(0x2000), used[0].Address)
	assert.Equal(t, uint64(0x4016), used[1].Address)
}

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrorev/internal/options"
)

//nolint:funlen // test functions can be long
func TestLoad(t *testing.T) {
	t.Run("load binary file", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = createTempFile(t, "test.bin", []byte{0x01, 0x02, 0x03, 0x04})
		opts.Binary = true

		cart, cdlReader, err := loader.Load(opts, arch.NES)
		assert.NoError(t, err)
		assert.NotNil(t, cart)
		assert.Nil(t, cdlReader)
		assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, cart.PRG)
	})

	t.Run("load CHIP8 file", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = createTempFile(t, "test.ch8", []byte{0x12, 0x34, 0x56, 0x78})

		cart, cdlReader, err := loader.Load(opts, arch.CHIP8System)
		assert.NoError(t, err)
		assert.Nil(t, cdlReader)
		assert.Len(t, cart.PRG, 4)
	})

	t.Run("load NES file with valid header", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = createTempFile(t, "test.nes", buildMinimalNESROM(1, 0))

		cart, cdlReader, err := loader.Load(opts, arch.NES)
		assert.NoError(t, err)
		assert.Nil(t, cdlReader)
		assert.Len(t, cart.PRG, 16384)
	})

	t.Run("error on non-existent file", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = "/nonexistent/file.nes"

		_, _, err := loader.Load(opts, arch.NES)
		assert.Error(t, err)
	})

	t.Run("load with CDL file", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = createTempFile(t, "test.bin", []byte{0x01, 0x02, 0x03, 0x04})
		opts.Binary = true
		opts.CodeDataLog = createTempFile(t, "test.cdl", []byte{0xC0, 0xDE})

		cart, cdlReader, err := loader.Load(opts, arch.NES)
		assert.NoError(t, err)
		assert.NotNil(t, cart)
		assert.NotNil(t, cdlReader)
		_ = cdlReader.Close()
	})

	t.Run("error on non-existent CDL file", func(t *testing.T) {
		loader := New()
		opts := options.Program{}
		opts.Input = createTempFile(t, "test.bin", []byte{0x01, 0x02, 0x03, 0x04})
		opts.Binary = true
		opts.CodeDataLog = "/nonexistent/cdl.log"

		_, _, err := loader.Load(opts, arch.NES)
		assert.Error(t, err)
	})
}

func TestLoadFromBytes(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		binary bool
		system arch.System
		prg    int
		mapper byte
		err    bool
	}{
		{"binary data", []byte{0xEA, 0xEA, 0xEA}, true, arch.NES, 3, 0, false},
		{"CHIP8 data", []byte{0x12, 0x34}, false, arch.CHIP8System, 2, 0, false},
		{"NES ROM", buildMinimalNESROM(1, 0), false, arch.NES, 16384, 0, false},
		{"NES ROM with mapper 1", buildMinimalNESROM(2, 1), false, arch.NES, 32768, 1, false},
		{"invalid NES header", make([]byte, 100), false, arch.NES, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := New().LoadFromBytes(tt.data, tt.binary, tt.system)
			if tt.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, cart.PRG, tt.prg)
			assert.Equal(t, tt.mapper, cart.Mapper)
		})
	}
}

func createTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}

// buildMinimalNESROM creates a minimal valid NES ROM in iNES format with specified PRG size.
// The mapper parameter is placed in the header at the correct position.
func buildMinimalNESROM(prgBanks, mapper byte) []byte {
	const nesHeaderSize = 16
	const prgBankSize = 16384 // 16KB

	data := make([]byte, nesHeaderSize+int(prgBanks)*prgBankSize)

	// iNES header
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A}) // Magic number
	data[4] = prgBanks                           // Number of 16KB PRG-ROM banks
	data[5] = 0                                  // Number of 8KB CHR-ROM banks
	data[6] = mapper << 4                        // Mapper low nibble
	data[7] = mapper & 0xF0                      // Mapper high nibble

	return data
}

package fileprocessor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/options"
)

// TestProcessFile_Binary verifies that raw binaries are analyzed from the code
// base address without reading the interrupt vectors.
func TestProcessFile_Binary(t *testing.T) {
	tests := []struct {
		name        string
		binary      bool
		expectReset bool
	}{
		{name: "binary mode starts at code base", binary: true, expectReset: false},
		{name: "iNES mode starts at reset handler", binary: false, expectReset: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := runProcessFile(t, tt.binary)

			assert.True(t, strings.Contains(output, "lda"), "output should contain decoded code")
			assert.True(t, strings.Contains(output, "rts"), "output should contain decoded code")
			assert.Equal(t, tt.expectReset, strings.Contains(output, "Reset:"), "reset label presence mismatch")
		})
	}
}

func createTestCode() []byte {
	// Simple 6502 program: LDA #$00, STA $0200, RTS
	return []byte{
		0xa9, 0x00, // LDA #$00
		0x8d, 0x00, 0x02, // STA $0200
		0x60, // RTS
	}
}

func runProcessFile(t *testing.T, binary bool) string {
	t.Helper()

	data := createTestCode()
	if !binary {
		data = createMinimalNESROM(data)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "test.nes")
	assert.NoError(t, os.WriteFile(input, data, 0600))

	opts := options.Program{}
	opts.Input = input
	opts.Output = GenerateOutputFilename(input)
	opts.Binary = binary
	opts.System = arch.NES.String()
	opts.Quiet = true

	analysis := options.NewAnalysis("ca65", opts.System)
	analysis.Binary = binary

	err := ProcessFile(context.Background(), log.NewTestLogger(t), opts, analysis)
	assert.NoError(t, err)

	output, err := os.ReadFile(filepath.Join(dir, "test.lst"))
	assert.NoError(t, err)
	return string(output)
}

func TestGetFilesToProcess(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.nes", "b.nes", "c.ch8"} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}

	opts := &options.Program{}
	opts.Batch = filepath.Join(dir, "*.nes")
	files, err := GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.nes"), filepath.Join(dir, "b.nes")}, files)

	opts = &options.Program{}
	opts.Input = "game.nes"
	files, err = GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{"game.nes"}, files)
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"game.nes", "game.lst"},
		{"dir/prog.ch8", "dir/prog.lst"},
		{"noext", "noext.lst"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GenerateOutputFilename(tt.input))
	}
}

// createMinimalNESROM creates a minimal valid NES ROM with the given code
func createMinimalNESROM(code []byte) []byte {
	rom := make([]byte, 0, 16+16384+8192) // Header + 16KB PRG + 8KB CHR

	// iNES header (16 bytes)
	header := []byte{
		0x4E, 0x45, 0x53, 0x1A, // "NES" + MS-DOS EOF
		0x01,       // 1x 16KB PRG-ROM
		0x01,       // 1x 8KB CHR-ROM
		0x00,       // Mapper 0, horizontal mirroring
		0x00,       // Mapper 0
		0x00,       // No PRG-RAM
		0x00,       // NTSC
		0x00, 0x00, // Unused
		0x00, 0x00, 0x00, 0x00, // Padding
	}
	rom = append(rom, header...)

	// PRG-ROM (16384 bytes)
	prgROM := make([]byte, 16384)
	copy(prgROM, code)

	// Set reset vector to point to start of code (0x8000)
	prgROM[0x3FFC] = 0x00
	prgROM[0x3FFD] = 0x80

	rom = append(rom, prgROM...)

	// CHR-ROM (8192 bytes)
	chrROM := make([]byte, 8192)
	rom = append(rom, chrROM...)

	return rom
}

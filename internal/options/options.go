// Package options contains the program options.
package options

import (
	"strings"

	"github.com/retroenv/retrogolib/arch"
)

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"input image file"`
	Output string `flag:"o" usage:"output listing file (default: stdout)"`
	Dot    string `flag:"dot" usage:"write control flow and call graphs as <prefix>.cfg.dot and <prefix>.calls.dot"`
	Batch  string `flag:"batch" usage:"batch process files matching pattern (e.g. *.nes)"`

	CodeDataLog string `flag:"cdl" usage:"Code/Data log file (.cdl)"`
}

// Flags contains behavior options.
type Flags struct {
	System       string `flag:"s" usage:"target system: nes, chip8, arm64 (default: auto-detect)"`
	Syntax       string `flag:"a" usage:"6502 operand syntax: asm6, ca65, nesasm" default:"ca65"`
	Binary       bool   `flag:"binary" usage:"treat input as raw binary without header"`
	Base         string `flag:"base" usage:"load address of raw binary images"`
	Entries      string `flag:"e" usage:"comma separated list of additional entry points"`
	NoUnofficial bool   `flag:"no-unofficial" usage:"treat unofficial 6502 opcodes as data"`
	SplitLimit   uint64 `flag:"split" usage:"interval store bucket split limit (0 for the default)"`
	Debug        bool   `flag:"debug" usage:"enable debug logging"`
	Quiet        bool   `flag:"q" usage:"quiet mode"`
}

// OutputFlags contains output formatting options.
type OutputFlags struct {
	NoHexComments bool `flag:"nohexcomments" usage:"omit hex opcode bytes in comments"`
	NoOffsets     bool `flag:"nooffsets" usage:"omit addresses in comments"`
	Foreign       bool `flag:"foreign" usage:"list mirrored objects at every address they are visible at"`
	NoPartition   bool `flag:"nopartition" usage:"do not group code into functions"`
}

// Program options of the analyzer.
type Program struct {
	Parameters
	Flags
	OutputFlags
}

// Analysis defines options to control the analysis.
type Analysis struct {
	System  arch.System // system type (e.g., nes, chip8, arm64)
	Syntax  string      // 6502 operand syntax
	Base    uint64      // load address of raw images
	HasBase bool        // base was set explicitly
	Entries []uint64    // additional entry points

	Binary                   bool
	NoUnofficialInstructions bool
	Partition                bool
	SplitLimit               uint64 // interval store split limit, 0 for the default

	AddressComments bool
	Foreign         bool
	HexComments     bool
}

// NewAnalysis returns a new options instance with default options.
func NewAnalysis(syntax, system string) Analysis {
	return Analysis{
		Syntax: strings.ToLower(syntax),
		System: arch.System(strings.ToLower(system)),

		Partition:       true,
		AddressComments: true,
		HexComments:     true,
	}
}

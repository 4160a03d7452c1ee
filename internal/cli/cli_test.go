package cli

import (
	"os"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrorev/internal/options"
)

func parseArgs(t *testing.T, args ...string) (options.Program, options.Analysis, error) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })

	os.Args = append([]string{"prog"}, args...)
	return ParseFlags()
}

func TestParseFlags_AnalysisOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options.Analysis
	}{
		{
			name: "default flags",
			args: []string{"test.nes"},
			want: options.Analysis{Syntax: "ca65", Partition: true, HexComments: true, AddressComments: true},
		},
		{
			name: "nohexcomments flag",
			args: []string{"-nohexcomments", "test.nes"},
			want: options.Analysis{Syntax: "ca65", Partition: true, AddressComments: true},
		},
		{
			name: "nooffsets and nopartition flags",
			args: []string{"-nooffsets", "-nopartition", "test.nes"},
			want: options.Analysis{Syntax: "ca65", HexComments: true},
		},
		{
			name: "foreign and binary flags",
			args: []string{"-foreign", "-binary", "test.bin"},
			want: options.Analysis{Syntax: "ca65", Partition: true, HexComments: true, AddressComments: true,
				Foreign: true, Binary: true},
		},
		{
			name: "nesasm disables unofficial instructions",
			args: []string{"-a", "NESASM", "test.nes"},
			want: options.Analysis{Syntax: "nesasm", Partition: true, HexComments: true, AddressComments: true,
				NoUnofficialInstructions: true},
		},
		{
			name: "asm6f alias",
			args: []string{"-a", "asm6f", "-no-unofficial", "test.nes"},
			want: options.Analysis{Syntax: "asm6", Partition: true, HexComments: true, AddressComments: true,
				NoUnofficialInstructions: true},
		},
		{
			name: "system base and entries",
			args: []string{"-s", "ARM64", "-base", "0x1000", "-e", "$1010, 1020", "-split", "16", "test.bin"},
			want: options.Analysis{Syntax: "ca65", System: "arm64", Partition: true, HexComments: true,
				AddressComments: true, Base: 0x1000, HasBase: true, Entries: []uint64{0x1010, 0x1020}, SplitLimit: 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := parseArgs(t, tt.args...)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlags_Input(t *testing.T) {
	opts, _, err := parseArgs(t, "-o", "out.lst", "-cdl", "test.cdl", "test.nes")
	assert.NoError(t, err)
	assert.Equal(t, "test.nes", opts.Input)
	assert.Equal(t, "out.lst", opts.Output)
	assert.Equal(t, "test.cdl", opts.CodeDataLog)

	opts, _, err = parseArgs(t, "-batch", "*.nes")
	assert.NoError(t, err)
	assert.Equal(t, "", opts.Input)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		usage bool
	}{
		{"no input", nil, true},
		{"argument after input", []string{"test.nes", "-q"}, true},
		{"unsupported syntax", []string{"-a", "retroasm", "test.nes"}, false},
		{"invalid base", []string{"-base", "xyz", "test.bin"}, false},
		{"invalid entry point", []string{"-e", "8000,zz", "test.nes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseArgs(t, tt.args...)
			assert.Error(t, err)
			_, isUsage := err.(*UsageError)
			assert.Equal(t, tt.usage, isUsage)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
	}{
		{"8000", 0x8000},
		{"0x8000", 0x8000},
		{"0XC000", 0xC000},
		{"$fffc", 0xFFFC},
	}

	for _, tt := range tests {
		address, err := parseAddress(tt.input)
		assert.NoError(t, err)
		assert.Equal(t, tt.expected, address)
	}
}

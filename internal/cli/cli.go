// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/retroenv/retrorev/internal/arch/m6502"
	"github.com/retroenv/retrorev/internal/options"
)

var validSyntaxes = []string{m6502.Asm6, m6502.Ca65, m6502.Nesasm}

// ParseFlags parses command line flags and returns program and analysis options
func ParseFlags() (options.Program, options.Analysis, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Batch == "") {
		return opts, options.Analysis{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Analysis{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Analysis{}, err
	}

	if opts.Batch == "" {
		opts.Input = args[0]
	}

	analysis, err := createAnalysisOptions(opts)
	if err != nil {
		return opts, options.Analysis{}, err
	}
	return opts, analysis, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrorev [options] <file to analyze>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after file to analyze, please pass the file to analyze as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Syntax = strings.ToLower(opts.Syntax)
	if opts.Syntax == "asm6f" {
		opts.Syntax = m6502.Asm6
	}

	if !slices.Contains(validSyntaxes, opts.Syntax) {
		return fmt.Errorf("unsupported syntax: %s. Valid options: %s",
			opts.Syntax, strings.Join(validSyntaxes, ", "))
	}
	return nil
}

// createAnalysisOptions creates analysis options based on program options
func createAnalysisOptions(opts options.Program) (options.Analysis, error) {
	analysis := options.NewAnalysis(opts.Syntax, opts.System)
	analysis.Binary = opts.Binary
	analysis.SplitLimit = opts.SplitLimit
	analysis.Partition = !opts.NoPartition
	analysis.Foreign = opts.Foreign
	analysis.HexComments = !opts.NoHexComments
	analysis.AddressComments = !opts.NoOffsets

	// nesasm doesn't support unofficial instructions
	analysis.NoUnofficialInstructions = opts.NoUnofficial || opts.Syntax == m6502.Nesasm

	if opts.Base != "" {
		base, err := parseAddress(opts.Base)
		if err != nil {
			return options.Analysis{}, fmt.Errorf("parsing base address: %w", err)
		}
		analysis.Base = base
		analysis.HasBase = true
	}

	for s := range strings.SplitSeq(opts.Entries, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		address, err := parseAddress(s)
		if err != nil {
			return options.Analysis{}, fmt.Errorf("parsing entry point: %w", err)
		}
		analysis.Entries = append(analysis.Entries, address)
	}

	return analysis, nil
}

// parseAddress parses a hexadecimal address. The value can be prefixed with
// 0x or $, plain numbers are read as hexadecimal as well.
func parseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "$")
	address, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address '%s': %w", s, err)
	}
	return address, nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input image file")
	flags.StringVar(&opts.Output, "o", "", "name of the output listing file, printed on console if no name given")
	flags.StringVar(&opts.Dot, "dot", "", "write the control flow and call graphs as <prefix>.cfg.dot and <prefix>.calls.dot")
	flags.StringVar(&opts.CodeDataLog, "cdl", "", "name of the .cdl Code/Data log file to load")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask and automatically .lst file naming, for example *.nes")

	flags.StringVar(&opts.System, "s", "", "system to analyze for (nes, chip8, arm64) - if not auto-detected from file extension")
	flags.StringVar(&opts.Syntax, "a", m6502.Ca65, "6502 operand syntax of the listing (asm6/ca65/nesasm)")
	flags.BoolVar(&opts.Binary, "binary", false, "read input file as raw binary file without any header")
	flags.StringVar(&opts.Base, "base", "", "load address of the image in hex, used as entry point of raw images")
	flags.StringVar(&opts.Entries, "e", "", "comma separated list of additional entry points in hex")
	flags.BoolVar(&opts.NoUnofficial, "no-unofficial", false, "treat unofficial 6502 opcodes as data")
	flags.Uint64Var(&opts.SplitLimit, "split", 0, "maximum number of objects per interval store bucket, 0 for the default")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")

	flags.BoolVar(&opts.NoHexComments, "nohexcomments", false, "do not output opcode bytes as hex values in comments")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in comments")
	flags.BoolVar(&opts.Foreign, "foreign", false, "list mirrored objects at every address they are visible at")
	flags.BoolVar(&opts.NoPartition, "nopartition", false, "do not group code into functions")
}

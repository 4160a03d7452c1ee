// Package pipeline orchestrates the analysis workflow stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/arch/arm64"
	"github.com/retroenv/retrorev/internal/arch/chip8"
	"github.com/retroenv/retrorev/internal/arch/m6502"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/consts"
	"github.com/retroenv/retrorev/internal/detector"
	"github.com/retroenv/retrorev/internal/graph"
	"github.com/retroenv/retrorev/internal/job"
	"github.com/retroenv/retrorev/internal/listing"
	"github.com/retroenv/retrorev/internal/loader"
	"github.com/retroenv/retrorev/internal/mapper"
	"github.com/retroenv/retrorev/internal/options"
	"github.com/retroenv/retrorev/internal/partition"
	"github.com/retroenv/retrorev/internal/vars"
)

// Result of an analysis run.
type Result struct {
	System    arch.System
	Image     *loader.Image
	Stats     job.Stats
	Partition *partition.Result // nil if partitioning is disabled
	Constants []listing.Alias
	Variables []listing.Alias
}

// symbolTables name register and memory accesses of the decoded code.
type symbolTables struct {
	consts *consts.Consts
	vars   *vars.Vars
}

// Pipeline orchestrates the complete analysis workflow.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	loader   *loader.Loader
}

// New creates a new analysis pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		loader:   loader.New(),
	}
}

// Execute runs the complete analysis pipeline.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, analysis options.Analysis, writer io.Writer) (*Result, error) {
	// Detect system architecture
	analysis.System = p.detector.Detect(opts.System, opts.Input)

	// Load image
	cart, cdlReader, err := p.loader.Load(opts, analysis.System)
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	defer func() {
		if cdlReader != nil {
			_ = cdlReader.Close()
		}
	}()

	var cdl io.Reader
	if cdlReader != nil {
		cdl = cdlReader
	}
	return p.ExecuteWithCartridge(ctx, cart, cdl, opts, analysis, writer)
}

// ExecuteWithCartridge runs the analysis pipeline with a pre-loaded cartridge.
// The system of the analysis options has to be set.
// This is useful for testing and programmatic usage where the cartridge is already in memory.
func (p *Pipeline) ExecuteWithCartridge(ctx context.Context, cart *cartridge.Cartridge, cdl io.Reader,
	opts options.Program, analysis options.Analysis, writer io.Writer) (*Result, error) {

	img, err := loader.Map(p.logger, cart, cdl, analysis)
	if err != nil {
		return nil, fmt.Errorf("mapping image: %w", err)
	}

	dec, tables, err := p.createDecoder(analysis)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	p.printInfo(opts, analysis, cart)

	result := &Result{
		System: analysis.System,
		Image:  img,
	}

	if err := p.runAnalysis(ctx, img, dec, analysis, result); err != nil {
		return nil, err
	}
	if err := p.processSymbols(img, tables, result); err != nil {
		return nil, err
	}

	if err := p.writeOutput(opts, analysis, result, writer); err != nil {
		return nil, err
	}
	return result, nil
}

// createDecoder creates the instruction decoder for the system. Symbol tables
// are only returned for systems with memory mapped registers.
func (p *Pipeline) createDecoder(analysis options.Analysis) (code.Decoder, *symbolTables, error) {
	switch analysis.System {
	case arch.NES:
		converter, err := m6502.Converter(analysis.Syntax)
		if err != nil {
			return nil, nil, fmt.Errorf("creating operand converter: %w", err)
		}
		constants, err := consts.NES()
		if err != nil {
			return nil, nil, fmt.Errorf("creating constants: %w", err)
		}

		tables := &symbolTables{consts: constants}
		dec := m6502.New(converter, m6502.Options{
			NoUnofficialInstructions: analysis.NoUnofficialInstructions,
			Constants:                constants,
			JumpEngines:              m6502.NewJumpEngines(p.logger),
		})
		tables.vars = vars.New(dec, mapper.CodeBaseAddress)
		dec.SetReferenceRecorder(tables.vars)
		return dec, tables, nil

	case arch.CHIP8System:
		return chip8.New(), nil, nil

	case detector.ARM64:
		return arm64.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported system '%s'", analysis.System)
	}
}

// processSymbols names the variables referenced by the decoded code and
// collects all used aliases.
func (p *Pipeline) processSymbols(img *loader.Image, tables *symbolTables, result *Result) error {
	if tables == nil {
		return nil
	}

	if err := tables.vars.Process(img.Space); err != nil {
		return fmt.Errorf("processing variables: %w", err)
	}

	for _, constant := range tables.consts.SortedUsed() {
		if constant.Read != "" {
			result.Constants = append(result.Constants, listing.Alias{Name: constant.Read, Address: constant.Address})
		}
		if constant.Write != "" && constant.Write != constant.Read {
			result.Constants = append(result.Constants, listing.Alias{Name: constant.Write, Address: constant.Address})
		}
	}
	for _, variable := range tables.vars.Variables() {
		result.Variables = append(result.Variables, listing.Alias{Name: variable.Name, Address: variable.Address})
	}

	p.logger.Debug("Symbols processed",
		log.Int("constants", len(result.Constants)),
		log.Int("variables", len(result.Variables)),
	)
	return nil
}

// runAnalysis decodes all code reachable from the entry points and partitions it.
func (p *Pipeline) runAnalysis(ctx context.Context, img *loader.Image, dec code.Decoder,
	analysis options.Analysis, result *Result) error {

	j := job.New(p.logger, img.Space)
	entries := slices.Concat(img.Entries, analysis.Entries)
	if err := j.Seed(dec, entries...); err != nil {
		return fmt.Errorf("seeding entry points: %w", err)
	}
	if err := j.Run(ctx); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	result.Stats = j.Stats()

	p.logger.Debug("Decoding finished",
		log.Int("decoded", result.Stats.Decoded),
		log.Int("failed", result.Stats.Failed),
		log.Int("dropped", result.Stats.Dropped),
		log.Int("duplicate", result.Stats.Duplicate),
	)

	if !analysis.Partition {
		return nil
	}

	partitioned, err := partition.New(p.logger).Run(img.Space.All())
	if err != nil {
		return fmt.Errorf("partitioning: %w", err)
	}
	result.Partition = partitioned
	return nil
}

// writeOutput writes the listing, the function summary and the optional graphs.
func (p *Pipeline) writeOutput(opts options.Program, analysis options.Analysis, result *Result, writer io.Writer) error {
	if err := listing.WriteAliases(writer, "constants", result.Constants); err != nil {
		return fmt.Errorf("writing constants: %w", err)
	}
	if err := listing.WriteAliases(writer, "variables", result.Variables); err != nil {
		return fmt.Errorf("writing variables: %w", err)
	}

	sp := result.Image.Space
	lst := listing.New(sp, writer, listing.Options{
		AddressComments: analysis.AddressComments,
		HexComments:     analysis.HexComments,
		Foreign:         analysis.Foreign,
	})
	if err := lst.Write(); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}

	if result.Partition == nil {
		return nil
	}

	builder := graph.New(sp, result.Partition)
	if err := listing.WriteSummary(writer, result.Partition, builder); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	if opts.Dot == "" {
		return nil
	}
	title := filepath.Base(opts.Input)
	if err := writeFile(opts.Dot+".cfg.dot", func(w io.Writer) error {
		return builder.WriteCFG(w, title)
	}); err != nil {
		return err
	}
	return writeFile(opts.Dot+".calls.dot", func(w io.Writer) error {
		return builder.WriteCallGraph(w, title)
	})
}

func writeFile(name string, write func(w io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", name, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", name, err)
	}
	return nil
}

// printInfo prints information about the image being processed.
func (p *Pipeline) printInfo(opts options.Program, analysis options.Analysis, cart *cartridge.Cartridge) {
	if opts.Quiet {
		return
	}

	switch analysis.System {
	case arch.NES:
		p.logger.Info("Processing NES ROM",
			log.String("file", opts.Input),
			log.Uint16("mapper", cart.Mapper),
			log.String("syntax", analysis.Syntax),
		)
		if cart.Mapper != 0 && cart.Mapper != 3 {
			p.logger.Warn("Support for this mapper is experimental, only the default bank layout is analyzed")
		}

	case arch.CHIP8System:
		p.logger.Info("Processing Chip-8 ROM",
			log.String("file", opts.Input),
		)

	default:
		p.logger.Info("Processing image",
			log.String("file", opts.Input),
			log.String("system", analysis.System.String()),
			log.Hex("base", analysis.Base),
		)
	}
}

// Package jumpengine provides jump engine detection and processing.
//
// A jump engine is a function that pops the return address of its caller and
// uses it to index a table of function addresses that directly follows the
// call instruction. This can be found in some official games like Super Mario Bros.
package jumpengine

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/space"
)

const (
	defaultMaxEntries = 128

	engineComment = "jump engine detected"
	tableNaming   = "_jump_table_%04x"
)

// Detector reports whether the function at the address is a jump engine.
type Detector interface {
	IsJumpEngine(sp space.Space, address uint64) (bool, error)
}

// Table is a function address table following a call of a jump engine.
type Table struct {
	Engine  uint64
	Caller  uint64
	Start   uint64
	Entries []uint64
}

// Option configures a JumpEngine.
type Option func(*JumpEngine)

// WithMaxEntries limits the number of entries read per table.
func WithMaxEntries(n int) Option {
	return func(j *JumpEngine) {
		j.maxEntries = n
	}
}

// JumpEngine tracks detected jump engines and the tables of their callers.
type JumpEngine struct {
	logger   *log.Logger
	detector Detector

	codeLo, codeHi uint64 // valid range of table entry destinations
	maxEntries     int

	engines map[uint64]bool // detection result by function address
	tables  []Table
}

// New returns a jump engine tracker. Table entries have to point into
// [codeLo, codeHi), the first entry outside of it ends a table.
func New(logger *log.Logger, detector Detector, codeLo, codeHi uint64, opts ...Option) *JumpEngine {
	j := &JumpEngine{
		logger:     logger,
		detector:   detector,
		codeLo:     codeLo,
		codeHi:     codeHi,
		maxEntries: defaultMaxEntries,
		engines:    map[uint64]bool{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// IsJumpEngine returns whether the called function is a jump engine. The
// detection runs once per function.
func (j *JumpEngine) IsJumpEngine(sp space.Space, destination uint64) (bool, error) {
	if engine, ok := j.engines[destination]; ok {
		return engine, nil
	}

	engine, err := j.detector.IsJumpEngine(sp, destination)
	if err != nil {
		if !space.IsRecoverable(err) {
			return false, fmt.Errorf("detecting jump engine: %w", err)
		}
		engine = false
	}
	j.engines[destination] = engine
	if !engine {
		return false, nil
	}

	j.logger.Debug("Jump engine detected", log.Hex("address", destination))
	if err := sp.SetBlockComment(destination, engineComment); err != nil && !space.IsRecoverable(err) {
		return false, fmt.Errorf("commenting jump engine: %w", err)
	}
	return true, nil
}

// ReadTable reads the function address table that starts at the return address
// of a jump engine call. The entries are recorded as data and their
// destinations are returned. The table ends at the first entry that points
// outside of the code range or overlaps an already known object.
func (j *JumpEngine) ReadTable(sp space.Space, engine, caller, start uint64) ([]uint64, error) {
	table := Table{
		Engine: engine,
		Caller: caller,
		Start:  start,
	}

	for address := start; len(table.Entries) < j.maxEntries; address += 2 {
		destination, ok, err := j.readEntry(sp, address, address == start)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		leaf := space.NewLeaf(sp, address, address+2, space.TagReference)
		leaf.SetText(fmt.Sprintf(".word $%04X", destination))
		if err := sp.Insert(leaf); err != nil {
			return nil, fmt.Errorf("inserting table entry: %w", err)
		}
		table.Entries = append(table.Entries, destination)
	}

	if len(table.Entries) > 0 && len(sp.Labels(start)) == 0 {
		if err := sp.SetLabel(start, fmt.Sprintf(tableNaming, start)); err != nil && !space.IsRecoverable(err) {
			return nil, fmt.Errorf("labeling jump table: %w", err)
		}
	}

	j.logger.Debug("Jump engine table",
		log.Hex("address", start),
		log.Hex("caller", caller),
		log.Int("entries", len(table.Entries)),
	)
	j.tables = append(j.tables, table)
	return table.Entries, nil
}

// Tables returns all read tables in the order they were read.
func (j *JumpEngine) Tables() []Table {
	return j.tables
}

// readEntry returns the destination of the table entry at the address and
// whether it is a valid entry.
func (j *JumpEngine) readEntry(sp space.Space, address uint64, first bool) (uint64, bool, error) {
	if address+2 > j.codeHi {
		return 0, false, nil
	}
	// a label marks the start of other code or data
	if !first && len(sp.Labels(address)) > 0 {
		return 0, false, nil
	}

	b := sp.FindRange(address, address+2)
	if len(b.Containing)+len(b.Equal)+len(b.Contained)+len(b.Partial) > 0 {
		return 0, false, nil
	}

	value, err := space.LE16(sp, address)
	if err != nil {
		if space.IsRecoverable(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reading table entry: %w", err)
	}

	destination := uint64(value)
	if destination < j.codeLo || destination >= j.codeHi {
		return 0, false, nil
	}
	return destination, true, nil
}

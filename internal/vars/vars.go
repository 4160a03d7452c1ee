// Package vars manages variables and data references in the analyzed program.
package vars

import (
	"fmt"

	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
	"github.com/retroenv/retrorev/internal/symbols"
)

const (
	dataNaming            = "_data_%04x"
	dataNamingIndexed     = "_data_%04x_indexed"
	variableNaming        = "_var_%04x"
	variableNamingIndexed = "_var_%04x_indexed"

	// maxAdjustment is the largest distance of a reference into an object
	// that is expressed relative to the object start.
	maxAdjustment = 2
)

// Access describes how an instruction accesses a referenced address.
type Access struct {
	Reads   bool
	Writes  bool
	Indexed bool // access with X/Y registers indicates a table
	Forced  bool // jumps into ram always create a variable
}

// Formatter rewrites the operand of an instruction to use a reference name.
type Formatter interface {
	FormatReference(sp space.Space, c *code.Code, reference string) error
}

// Variable is a named address outside of the program code area.
type Variable struct {
	Name    string
	Address uint64
}

type variable struct {
	access  Access
	address uint64
	name    string
	usageAt []uint64 // addresses of all instructions that use this address
}

// Vars manages variables in the analyzed program.
type Vars struct {
	formatter Formatter
	codeBase  uint64

	variables *symbols.Manager[*variable]
}

// New creates a new variables manager. Addresses below the code base address
// become variables, addresses above are data references into the program.
func New(formatter Formatter, codeBase uint64) *Vars {
	return &Vars{
		formatter: formatter,
		codeBase:  codeBase,
		variables: symbols.New[*variable](),
	}
}

// AddReference adds a variable reference if the instruction at the usage
// address is accessing the given address directly by reading or writing.
func (v *Vars) AddReference(address, usage uint64, access Access) {
	if !access.Reads && !access.Writes && !access.Forced {
		return
	}

	varInfo, ok := v.variables.Get(address)
	if !ok {
		varInfo = &variable{
			address: address,
		}
		v.variables.Set(address, varInfo)
	}

	varInfo.usageAt = append(varInfo.usageAt, usage)
	varInfo.access.Reads = varInfo.access.Reads || access.Reads
	varInfo.access.Writes = varInfo.access.Writes || access.Writes
	varInfo.access.Indexed = varInfo.access.Indexed || access.Indexed
	varInfo.access.Forced = varInfo.access.Forced || access.Forced
}

// Process names all referenced addresses and updates the instructions that use
// them with the generated alias name.
func (v *Vars) Process(sp space.Space) error {
	for _, varInfo := range v.variables.Sorted() {
		if len(varInfo.usageAt) == 1 && !varInfo.access.Indexed && !varInfo.access.Forced &&
			varInfo.address < v.codeBase {
			if !varInfo.access.Reads || !varInfo.access.Writes {
				continue // ignore only once usages or ones that are not read and write
			}
		}

		var reference string
		if varInfo.address >= v.codeBase {
			// if the referenced address is inside the code, a label will be created for it
			start, adjustment := objectStart(sp, varInfo.address)
			name, err := v.dataName(sp, start, varInfo.access.Indexed)
			if err != nil {
				return err
			}
			varInfo.name = name
			reference = name
			if adjustment > 0 {
				reference = fmt.Sprintf("%s+%d", name, adjustment)
			}
		} else {
			varInfo.name = variableName(varInfo.address, varInfo.access.Indexed)
			reference = varInfo.name
			v.variables.MarkUsed(varInfo.address)
		}

		for _, usage := range varInfo.usageAt {
			if err := v.formatUsage(sp, usage, reference); err != nil {
				return err
			}
		}
	}
	return nil
}

// Variables returns all used variables ordered by address.
func (v *Vars) Variables() []Variable {
	used := v.variables.SortedUsed()
	variables := make([]Variable, 0, len(used))
	for _, varInfo := range used {
		variables = append(variables, Variable{Name: varInfo.name, Address: varInfo.address})
	}
	return variables
}

func (v *Vars) formatUsage(sp space.Space, usage uint64, reference string) error {
	for _, obj := range sp.FindLo(usage) {
		if space.IsForeign(obj) {
			continue
		}
		c, ok := space.Unwrap(obj).(*code.Code)
		if !ok {
			continue
		}
		if err := v.formatter.FormatReference(sp, c, reference); err != nil {
			return fmt.Errorf("processing variable usage at 0x%04x: %w", usage, err)
		}
	}
	return nil
}

// objectStart returns the start of the object that covers the address. A
// reference into the middle of an instruction is converted to a reference to
// its start plus an adjustment like +1 or +2.
func objectStart(sp space.Space, address uint64) (uint64, uint64) {
	for adjustment := uint64(0); adjustment <= maxAdjustment && adjustment <= address; adjustment++ {
		for _, obj := range sp.FindLo(address - adjustment) {
			if obj.Hi() > address {
				return address - adjustment, adjustment
			}
		}
	}
	return address, 0
}

// dataName returns the name of a data reference, an existing label is reused.
func (v *Vars) dataName(sp space.Space, address uint64, indexed bool) (string, error) {
	if labels := sp.Labels(address); len(labels) > 0 {
		return labels[0], nil
	}

	format := dataNaming
	if indexed {
		format = dataNamingIndexed
	}
	name := fmt.Sprintf(format, address)
	if err := sp.SetLabel(address, name); err != nil && !space.IsRecoverable(err) {
		return "", fmt.Errorf("labeling data reference: %w", err)
	}
	return name, nil
}

func variableName(address uint64, indexed bool) string {
	if indexed {
		return fmt.Sprintf(variableNamingIndexed, address)
	}
	return fmt.Sprintf(variableNaming, address)
}

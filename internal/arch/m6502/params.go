package m6502

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
	"github.com/retroenv/retrorev/internal/space"
)

// Supported operand syntax flavors.
const (
	Asm6   = "asm6"
	Ca65   = "ca65"
	Nesasm = "nesasm"
)

var syntaxConfigs = map[string]parameter.Config{
	Asm6: {
		AbsolutePrefix: "a:",
		IndirectPrefix: "(",
		IndirectSuffix: ")",
	},
	Ca65: {
		ZeroPagePrefix: "z:",
		AbsolutePrefix: "a:",
		IndirectPrefix: "(",
		IndirectSuffix: ")",
	},
	Nesasm: {},
}

// Converter returns the operand converter for the named syntax flavor.
func Converter(syntax string) (parameter.Converter, error) {
	cfg, ok := syntaxConfigs[strings.ToLower(syntax)]
	if !ok {
		return parameter.Converter{}, fmt.Errorf("unsupported syntax '%s'", syntax)
	}
	return parameter.New(cfg), nil
}

type paramReaderFunc func(sp space.Space, address uint64) (any, int, error)

var paramReader = map[cpu6502.AddressingMode]paramReaderFunc{
	cpu6502.ImpliedAddressing:     paramReaderImplied,
	cpu6502.ImmediateAddressing:   paramReaderImmediate,
	cpu6502.AccumulatorAddressing: paramReaderAccumulator,
	cpu6502.AbsoluteAddressing:    paramReaderAbsolute,
	cpu6502.AbsoluteXAddressing:   paramReaderAbsoluteX,
	cpu6502.AbsoluteYAddressing:   paramReaderAbsoluteY,
	cpu6502.ZeroPageAddressing:    paramReaderZeroPage,
	cpu6502.ZeroPageXAddressing:   paramReaderZeroPageX,
	cpu6502.ZeroPageYAddressing:   paramReaderZeroPageY,
	cpu6502.RelativeAddressing:    paramReaderRelative,
	cpu6502.IndirectAddressing:    paramReaderIndirect,
	cpu6502.IndirectXAddressing:   paramReaderIndirectX,
	cpu6502.IndirectYAddressing:   paramReaderIndirectY,
}

// readParam reads the operand following the opcode byte at the address and
// returns it together with the operand size in bytes.
func readParam(sp space.Space, addressing cpu6502.AddressingMode, address uint64) (any, int, error) {
	fun, ok := paramReader[addressing]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported addressing mode %02x", addressing)
	}
	return fun(sp, address)
}

func paramReaderImplied(space.Space, uint64) (any, int, error) {
	return nil, 0, nil
}

func paramReaderImmediate(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return int(b), 1, nil
}

func paramReaderAccumulator(space.Space, uint64) (any, int, error) {
	return cpu6502.Accumulator(0), 0, nil
}

func paramReaderAbsolute(sp space.Space, address uint64) (any, int, error) {
	w, err := paramReadWord(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.Absolute(w), 2, nil
}

func paramReaderAbsoluteX(sp space.Space, address uint64) (any, int, error) {
	w, err := paramReadWord(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.AbsoluteX(w), 2, nil
}

func paramReaderAbsoluteY(sp space.Space, address uint64) (any, int, error) {
	w, err := paramReadWord(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.AbsoluteY(w), 2, nil
}

func paramReaderZeroPage(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.ZeroPage(b), 1, nil
}

func paramReaderZeroPageX(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.ZeroPageX(b), 1, nil
}

func paramReaderZeroPageY(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.ZeroPageY(b), 1, nil
}

// paramReaderRelative resolves the branch offset to the absolute target.
func paramReaderRelative(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	target := uint16(address) + 2 + uint16(int8(b))
	return cpu6502.Absolute(target), 1, nil
}

func paramReaderIndirect(sp space.Space, address uint64) (any, int, error) {
	// the pointer is not dereferenced, its content is only known at runtime
	w, err := paramReadWord(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.Indirect(w), 2, nil
}

func paramReaderIndirectX(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.IndirectX(b), 1, nil
}

func paramReaderIndirectY(sp space.Space, address uint64) (any, int, error) {
	b, err := paramReadByte(sp, address)
	if err != nil {
		return nil, 0, err
	}
	return cpu6502.IndirectY(b), 1, nil
}

func paramReadByte(sp space.Space, address uint64) (byte, error) {
	v, err := sp.Read(address + 1)
	if err != nil {
		return 0, fmt.Errorf("reading memory at address %04x: %w", address+1, err)
	}
	return byte(v), nil
}

func paramReadWord(sp space.Space, address uint64) (uint16, error) {
	w, err := space.LE16(sp, address+1)
	if err != nil {
		return 0, fmt.Errorf("reading memory at address %04x: %w", address+1, err)
	}
	return w, nil
}

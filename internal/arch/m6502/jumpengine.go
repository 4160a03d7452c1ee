package m6502

import (
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/jumpengine"
	"github.com/retroenv/retrorev/internal/mapper"
	"github.com/retroenv/retrorev/internal/space"
)

// jumpEngineMaxContextSize limits the size of a function that is checked for
// being a jump engine.
const jumpEngineMaxContextSize = 0x25

// JumpEngines tracks jump engine functions and reads the function tables that
// follow their calls.
type JumpEngines interface {
	IsJumpEngine(sp space.Space, destination uint64) (bool, error)
	ReadTable(sp space.Space, engine, caller, start uint64) ([]uint64, error)
}

// NewJumpEngines returns a jump engine tracker whose tables point into the
// cartridge code area.
func NewJumpEngines(logger *log.Logger) *jumpengine.JumpEngine {
	return jumpengine.New(logger, JumpEngineDetector{}, mapper.CodeBaseAddress, uint64(cpu6502.InterruptVectorStartAddress))
}

// JumpEngineDetector detects jump engines by scanning the code of a called
// function without recording it.
type JumpEngineDetector struct{}

// IsJumpEngine returns whether the function at the address is a jump engine.
// The function has to pull the return address of its caller from the stack
// and end with an indirect jump, without any other branching instruction.
func (JumpEngineDetector) IsJumpEngine(sp space.Space, address uint64) (bool, error) {
	var pulls bool

	for pc := address; pc < address+jumpEngineMaxContextSize; {
		v, err := sp.Read(pc)
		if err != nil {
			return false, err
		}
		op := cpu6502.Opcodes[byte(v)]
		if op.Instruction == nil || op.Instruction.Unofficial {
			return false, nil
		}

		name := op.Instruction.Name
		addressing := cpu6502.AddressingMode(op.Addressing)
		if name == cpu6502.JmpName && addressing == cpu6502.IndirectAddressing {
			return pulls, nil
		}
		if _, ok := cpu6502.BranchingInstructions[name]; ok {
			return false, nil
		}
		if name == cpu6502.PlaName {
			pulls = true
		}

		_, size, err := readParam(sp, addressing, pc)
		if err != nil {
			return false, err
		}
		pc += uint64(1 + size)
	}
	return false, nil
}

// addJumpEngineFlows adds the table entries that follow a call of a jump engine
// as call flows of the calling instruction. It returns whether the called
// function is a jump engine, the return address is then not decoded as code.
func (d *Decoder) addJumpEngineFlows(sp space.Space, c *code.Code, destination uint64) (bool, error) {
	if d.options.JumpEngines == nil {
		return false, nil
	}

	engine, err := d.options.JumpEngines.IsJumpEngine(sp, destination)
	if err != nil || !engine {
		return false, err
	}

	size, _ := c.Size()
	entries, err := d.options.JumpEngines.ReadTable(sp, destination, c.Address(), c.Address()+size)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		c.To(code.Call, code.When("table"), entry)
		if err := label(sp, entry, "_func_%04x"); err != nil {
			return false, err
		}
	}
	return true, nil
}

package m6502

import (
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// complementaryBranches defines pairs of branch instructions that test opposite conditions of the same flag.
// If both instructions in a pair appear consecutively, they create an unconditional branch pattern.
var complementaryBranches = map[string]string{
	cpu6502.BeqName: cpu6502.BneName, // Zero flag: equal vs not equal
	cpu6502.BneName: cpu6502.BeqName,
	cpu6502.BccName: cpu6502.BcsName, // Carry flag: clear vs set
	cpu6502.BcsName: cpu6502.BccName,
	cpu6502.BplName: cpu6502.BmiName, // Negative flag: plus vs minus
	cpu6502.BmiName: cpu6502.BplName,
	cpu6502.BvcName: cpu6502.BvsName, // Overflow flag: clear vs set
	cpu6502.BvsName: cpu6502.BvcName,
}

const complementaryComment = "unconditional branch pattern (complementary branches)"

// addBranchFlows adds the flows of a conditional branch. A branch directly
// following its complementary branch is always taken, its fallthrough is
// dropped.
func (d *Decoder) addBranchFlows(sp space.Space, c *code.Code, target uint64) error {
	name := c.Mnemonic()

	if followsComplementaryBranch(sp, c.Address(), name) {
		c.To(code.Jump, code.Always, target)
		if err := sp.SetLineComment(c.Address(), complementaryComment); err != nil && !space.IsRecoverable(err) {
			return err
		}
	} else {
		c.To(code.CondJump, code.When(name), target)
		c.Fallthrough(code.When("!" + name))
	}
	return label(sp, target, "_label_%04x")
}

// followsComplementaryBranch returns whether the code ending at the address is
// the complementary branch of the named branch.
func followsComplementaryBranch(sp space.Space, address uint64, name string) bool {
	complementary, ok := complementaryBranches[name]
	if !ok {
		return false
	}
	for _, obj := range sp.FindHi(address) {
		if space.IsForeign(obj) {
			continue
		}
		prev, ok := space.Unwrap(obj).(*code.Code)
		if ok && prev.Mnemonic() == complementary {
			return true
		}
	}
	return false
}

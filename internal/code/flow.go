package code

import (
	"fmt"
	"strings"
)

// FlowType is the kind of a control transfer.
type FlowType int

// Control transfer kinds.
const (
	Fallthrough FlowType = iota
	Jump
	CondJump
	Call
	Return
	Unresolved
)

var flowTypeNames = map[FlowType]string{
	Fallthrough: "fallthrough",
	Jump:        "jump",
	CondJump:    "cond-jump",
	Call:        "call",
	Return:      "return",
	Unresolved:  "unresolved",
}

func (t FlowType) String() string {
	if name, ok := flowTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("flow(%d)", int(t))
}

// ConditionKind classifies the condition under which a flow is taken.
type ConditionKind int

// Condition kinds.
const (
	AlwaysTrue ConditionKind = iota
	NamedPredicate
	UnknownCondition
)

// Condition is the predicate of a flow.
type Condition struct {
	Kind ConditionKind
	Name string // predicate name of a NamedPredicate condition
}

// Always is the condition of flows that are always taken.
var Always = Condition{Kind: AlwaysTrue}

// Unknown is the condition of flows that depend on state that was not decoded.
var Unknown = Condition{Kind: UnknownCondition}

// When returns a condition for a named predicate such as a cpu flag test.
func When(predicate string) Condition {
	return Condition{Kind: NamedPredicate, Name: predicate}
}

func (c Condition) String() string {
	switch c.Kind {
	case AlwaysTrue:
		return "always"
	case NamedPredicate:
		return c.Name
	default:
		return "?"
	}
}

// Flow is a control transfer from a decoded instruction.
type Flow struct {
	Source *Code
	Type   FlowType
	Cond   Condition

	dst    uint64
	hasDst bool
}

// Destination returns the target address of the flow and whether it is known.
func (f *Flow) Destination() (uint64, bool) {
	return f.dst, f.hasDst
}

// IsCall returns whether the flow enters a subroutine.
func (f *Flow) IsCall() bool {
	return f.Type == Call
}

// String returns a description of the flow for display purposes.
func (f *Flow) String() string {
	var sb strings.Builder
	sb.WriteString(f.Type.String())
	if f.Cond.Kind != AlwaysTrue {
		fmt.Fprintf(&sb, "(%s)", f.Cond)
	}

	switch {
	case f.hasDst:
		fmt.Fprintf(&sb, " 0x%04x", f.dst)
	case f.Type != Return:
		sb.WriteString(" ?")
	}
	return sb.String()
}

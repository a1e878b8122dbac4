package valuegraph

import (
	"fmt"
	"math"
	"strings"
)

// Op is a binary fold operator applied while deriving a node's value from one
// of its parents. The set is closed: dispatch is exhaustive and unknown
// operator names are a configuration error, never a silent no-op.
type Op int

const (
	// OpAssign replaces the accumulator with the parent's value.
	OpAssign Op = iota
	// OpMax keeps the larger of accumulator and parent.
	OpMax
	// OpMin keeps the smaller of accumulator and parent.
	OpMin
	// OpAdd adds the parent to the accumulator.
	OpAdd
	// OpSub subtracts the parent from the accumulator.
	OpSub
	// OpMul multiplies the accumulator by the parent.
	OpMul
	// OpDiv divides the accumulator by the parent.
	OpDiv
	// OpPow raises the accumulator to the parent's power.
	OpPow
	// OpRoot takes the parent-th root of the accumulator.
	OpRoot
	// OpLog takes the log of the accumulator in the parent's base.
	OpLog
)

var opNames = [...]string{
	OpAssign: "assign",
	OpMax:    "max",
	OpMin:    "min",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpDiv:    "div",
	OpPow:    "pow",
	OpRoot:   "root",
	OpLog:    "log",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opNames[op]
}

// ParseOp resolves an operator name as it appears in scenario configuration.
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if strings.EqualFold(name, n) {
			return Op(op), nil
		}
	}
	return 0, fmt.Errorf("unknown value-graph operator %q", name)
}

// apply folds one parent value into the running accumulator.
func (op Op) apply(cur, parent float64) float64 {
	switch op {
	case OpAssign:
		return parent
	case OpMax:
		return math.Max(cur, parent)
	case OpMin:
		return math.Min(cur, parent)
	case OpAdd:
		return cur + parent
	case OpSub:
		return cur - parent
	case OpMul:
		return cur * parent
	case OpDiv:
		return cur / parent
	case OpPow:
		return math.Pow(cur, parent)
	case OpRoot:
		return math.Pow(cur, 1/parent)
	case OpLog:
		return math.Log(cur) / math.Log(parent)
	default:
		panic(fmt.Sprintf("valuegraph: apply called with invalid operator %d", int(op)))
	}
}

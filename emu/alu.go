package emu

import (
	"errors"

	"github.com/sarchlab/mcsim/insts"
)

// ErrDivideByZero is reported by the ALU when a DIV has a zero divisor.
// The operation still yields 0 so execution can continue.
var ErrDivideByZero = errors.New("division by zero")

// ALU implements the arithmetic and comparison operations.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute applies an arithmetic opcode to two operands.
// Non-arithmetic opcodes yield 0.
func (a *ALU) Compute(op insts.Op, lhs, rhs int64) (int64, error) {
	switch op {
	case insts.OpADD:
		return lhs + rhs, nil
	case insts.OpSUB:
		return lhs - rhs, nil
	case insts.OpMUL:
		return lhs * rhs, nil
	case insts.OpDIV:
		if rhs == 0 {
			return 0, ErrDivideByZero
		}
		return lhs / rhs, nil
	default:
		return 0, nil
	}
}

// Compare evaluates an IF condition.
func (a *ALU) Compare(cond insts.Cond, lhs, rhs int64) bool {
	switch cond {
	case insts.CondEQ:
		return lhs == rhs
	case insts.CondNE:
		return lhs != rhs
	case insts.CondLT:
		return lhs < rhs
	case insts.CondGT:
		return lhs > rhs
	case insts.CondLE:
		return lhs <= rhs
	case insts.CondGE:
		return lhs >= rhs
	default:
		return false
	}
}

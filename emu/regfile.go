// Package emu provides the functional building blocks of the simulated machine:
// shared memory, register files, and the ALU.
package emu

import "github.com/sarchlab/mcsim/insts"

// RegFile represents a core's architectural register file.
// It holds general-purpose registers R0-R31.
type RegFile struct {
	// R holds the general-purpose registers.
	R [insts.NumRegs]int64
}

// ReadReg reads a register value. Out-of-range registers read as 0.
func (r *RegFile) ReadReg(reg uint8) int64 {
	if int(reg) >= insts.NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a value to a register. Out-of-range writes are ignored.
func (r *RegFile) WriteReg(reg uint8, value int64) {
	if int(reg) >= insts.NumRegs {
		return
	}
	r.R[reg] = value
}

// ReadOperand resolves an operand against the register file.
func (r *RegFile) ReadOperand(op insts.Operand) int64 {
	if op.IsReg {
		return r.ReadReg(op.Reg)
	}
	return op.Imm
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.R = [insts.NumRegs]int64{}
}

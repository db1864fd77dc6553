// Package pipeline provides the five stage pass a core runs once per cycle.
package pipeline

import "github.com/sarchlab/mcsim/insts"

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the instruction index of the fetched line.
	PC int

	// Addr is the memory address the line was fetched from.
	Addr uint64

	// Text is the raw instruction line.
	Text string

	// CacheHit reports whether the fetch hit the instruction cache.
	CacheHit bool
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	Valid bool
	PC    int

	// Inst is the decoded instruction.
	Inst *insts.Instruction
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	Valid bool
	PC    int
	Inst  *insts.Instruction

	// ALUResult is the arithmetic result.
	ALUResult int64

	// Addr is the resolved LOAD/STORE address.
	Addr uint64

	// StoreValue is the value a STORE writes.
	StoreValue int64

	// NextPC is the instruction index to continue at.
	NextPC int

	// DivideByZero is set when a DIV had a zero divisor.
	DivideByZero bool

	// Control signals.
	MemRead  bool
	MemWrite bool
	RegWrite bool
}

// Clear resets the EX/MEM register to empty state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	Valid bool
	PC    int
	Inst  *insts.Instruction

	// Result is the value written back to Rd.
	Result int64

	// MemData is the value a LOAD read.
	MemData int64

	// RegWrite and MemToReg select the writeback source.
	RegWrite bool
	MemToReg bool

	// Addr is the address actually accessed.
	Addr uint64

	// Clamped is set when Requested fell outside the process window and the
	// access was redirected to its base.
	Clamped   bool
	Requested uint64

	// IOWrite is set when a STORE reached the I/O device. IOBusy is set when
	// the device was held by another process and nothing was written.
	IOWrite bool
	IOBusy  bool
}

// Clear resets the MEM/WB register to empty state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}

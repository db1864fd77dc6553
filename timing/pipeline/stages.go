package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/insts"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/timing/cache"
)

// Window is the memory window and program size of the running process.
type Window struct {
	Base  uint64
	Limit uint64
	Count int
}

// WindowOf returns the window of p.
func WindowOf(p *process.PCB) Window {
	return Window{Base: p.Base, Limit: p.Limit, Count: p.InstructionCount}
}

// Addr returns the address of instruction pc.
func (w Window) Addr(pc int) uint64 {
	return w.Base + uint64(pc)
}

// Contains reports whether addr lies inside the window.
func (w Window) Contains(addr uint64) bool {
	return addr >= w.Base && addr < w.Limit
}

// IOPort is the single I/O device as seen by a STORE.
type IOPort interface {
	// AcquireIO claims the device for the running process and reports
	// whether it succeeded.
	AcquireIO() bool
}

// FetchStage handles instruction fetch from memory.
type FetchStage struct {
	memory *emu.Memory
	icache *cache.Cache
}

// NewFetchStage creates a new fetch stage. icache may be nil.
func NewFetchStage(memory *emu.Memory, icache *cache.Cache) *FetchStage {
	return &FetchStage{
		memory: memory,
		icache: icache,
	}
}

// Fetch reads instruction pc of the window. A miss in the instruction cache
// installs the line. The result is invalid past the end of the program.
func (s *FetchStage) Fetch(win Window, pc int) IFIDRegister {
	if pc < 0 || pc >= win.Count {
		return IFIDRegister{}
	}

	addr := win.Addr(pc)
	text, ok := s.memory.InstructionAt(addr)
	if !ok {
		return IFIDRegister{}
	}

	hit := false
	if s.icache != nil {
		hit = s.icache.Lookup(addr, text)
		if !hit {
			s.icache.Update(addr, text)
		}
	}

	return IFIDRegister{
		Valid:    true,
		PC:       pc,
		Addr:     addr,
		Text:     text,
		CacheHit: hit,
	}
}

// DecodeStage handles instruction decode.
type DecodeStage struct {
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage() *DecodeStage {
	return &DecodeStage{decoder: insts.NewDecoder()}
}

// Decode decodes the fetched line.
func (s *DecodeStage) Decode(ifid *IFIDRegister) (IDEXRegister, error) {
	inst, err := s.decoder.Decode(ifid.Text)
	if err != nil {
		return IDEXRegister{}, fmt.Errorf("pc %d: %w", ifid.PC, err)
	}

	return IDEXRegister{
		Valid: true,
		PC:    ifid.PC,
		Inst:  inst,
	}, nil
}

// ExecuteStage handles ALU operations, address calculation and control flow.
type ExecuteStage struct {
	alu    *emu.ALU
	memory *emu.Memory
}

// NewExecuteStage creates a new execute stage. memory is used to find the
// matching end of IF, ELSE and LOOP blocks.
func NewExecuteStage(memory *emu.Memory) *ExecuteStage {
	return &ExecuteStage{
		alu:    emu.NewALU(),
		memory: memory,
	}
}

// Execute performs the operation against ctx. Control-flow instructions
// update the loop stack of ctx and choose the next PC.
func (s *ExecuteStage) Execute(idex *IDEXRegister, ctx *process.Context, win Window) EXMEMRegister {
	inst := idex.Inst
	pc := idex.PC
	regs := &ctx.Regs

	out := EXMEMRegister{
		Valid:  true,
		PC:     pc,
		Inst:   inst,
		NextPC: pc + 1,
	}

	switch inst.Op {
	case insts.OpLOAD:
		out.MemRead = true
		out.RegWrite = true
		out.Addr = address(regs.ReadOperand(inst.Src))

	case insts.OpSTORE:
		out.MemWrite = true
		out.Addr = address(regs.ReadOperand(inst.Src))
		out.StoreValue = regs.ReadReg(inst.Rd)

	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpDIV:
		result, err := s.alu.Compute(inst.Op, regs.ReadReg(inst.Rn), regs.ReadOperand(inst.Src))
		out.DivideByZero = errors.Is(err, emu.ErrDivideByZero)
		out.ALUResult = result
		out.RegWrite = true

	case insts.OpIF:
		if !s.alu.Compare(inst.Cond, regs.ReadReg(inst.Rd), regs.ReadOperand(inst.Src)) {
			out.NextPC = s.matching(win, pc, insts.OpIF, insts.OpIEND) + 1
		}

	case insts.OpIEND:
		// Reaching I_END means the IF body ran, so an ELSE body is skipped.
		if next, ok := s.line(win, pc+1); ok && insts.Classify(next) == insts.OpELSE {
			out.NextPC = s.matching(win, pc+1, insts.OpELSE, insts.OpELSEEND) + 1
		}

	case insts.OpLOOP:
		n := regs.ReadOperand(inst.Src)
		if n <= 0 {
			out.NextPC = s.matching(win, pc, insts.OpLOOP, insts.OpLEND) + 1
			break
		}
		ctx.Loops = append(ctx.Loops, process.LoopFrame{Start: pc + 1, Remaining: n})

	case insts.OpLEND:
		if k := len(ctx.Loops); k > 0 {
			top := &ctx.Loops[k-1]
			top.Remaining--
			if top.Remaining > 0 {
				out.NextPC = top.Start
			} else {
				ctx.Loops = ctx.Loops[:k-1]
			}
		}
	}

	return out
}

// address converts an operand value into a memory address. Negative values
// map to an address no window contains.
func address(v int64) uint64 {
	if v < 0 {
		return math.MaxUint64
	}
	return uint64(v)
}

func (s *ExecuteStage) line(win Window, pc int) (string, bool) {
	if pc < 0 || pc >= win.Count {
		return "", false
	}
	return s.memory.InstructionAt(win.Addr(pc))
}

// matching returns the index of the close instruction that ends the block
// opened at pc, or the last instruction if the block is unterminated.
func (s *ExecuteStage) matching(win Window, pc int, openOp, closeOp insts.Op) int {
	depth := 1
	for i := pc + 1; i < win.Count; i++ {
		text, ok := s.line(win, i)
		if !ok {
			break
		}

		switch insts.Classify(text) {
		case openOp:
			depth++
		case closeOp:
			depth--
		}
		if depth == 0 {
			return i
		}
	}
	return win.Count - 1
}

// MemoryStage handles memory load/store operations.
type MemoryStage struct {
	memory *emu.Memory
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{memory: memory}
}

// Access performs the LOAD or STORE. Addresses outside the window are
// redirected to its base. A STORE to the I/O address writes only if io
// grants the device.
func (s *MemoryStage) Access(exmem *EXMEMRegister, win Window, io IOPort) MEMWBRegister {
	out := MEMWBRegister{
		Valid:    true,
		PC:       exmem.PC,
		Inst:     exmem.Inst,
		Result:   exmem.ALUResult,
		RegWrite: exmem.RegWrite,
	}
	if !exmem.MemRead && !exmem.MemWrite {
		return out
	}

	addr := exmem.Addr
	if exmem.MemWrite && s.memory.IsIO(addr) {
		if io == nil || !io.AcquireIO() {
			out.IOBusy = true
			return out
		}
		s.memory.Write(addr, exmem.StoreValue)
		out.Addr = addr
		out.IOWrite = true
		return out
	}

	if !win.Contains(addr) {
		out.Clamped = true
		out.Requested = addr
		addr = win.Base
	}
	out.Addr = addr

	if exmem.MemRead {
		out.MemData = s.memory.Read(addr)
		out.MemToReg = true
	} else {
		s.memory.Write(addr, exmem.StoreValue)
	}

	return out
}

// WritebackStage handles register file writeback.
type WritebackStage struct{}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage() *WritebackStage {
	return &WritebackStage{}
}

// Writeback writes the result to the register file.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister, regs *emu.RegFile) {
	if !memwb.Valid || !memwb.RegWrite {
		return
	}

	value := memwb.Result
	if memwb.MemToReg {
		value = memwb.MemData
	}
	regs.WriteReg(memwb.Inst.Rd, value)
}

package pipeline

import (
	"fmt"
	"sync"

	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/insts"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/timing/cache"
)

// Stage identifies one of the five pipeline stages.
type Stage int

// Pipeline stages, in the order a pass runs them.
const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback

	NumStages
)

var stageNames = [NumStages]string{"Fetch", "Decode", "Execute", "Memory", "Writeback"}

func (s Stage) String() string {
	if s < 0 || s >= NumStages {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Passes is the number of passes that fetched an instruction.
	Passes uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// CacheHits and CacheMisses count instruction fetches.
	CacheHits   uint64
	CacheMisses uint64
}

// CPI returns passes per retired instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Passes) / float64(s.Instructions)
}

// PassResult describes one pass.
type PassResult struct {
	// Fetched is false when the PC is past the end of the program.
	Fetched bool
	// Retired is false when a STORE lost the I/O device and must be retried.
	Retired bool

	PC   int
	Inst *insts.Instruction

	CacheHit     bool
	DivideByZero bool

	Clamped   bool
	Requested uint64
	Addr      uint64

	IOWrite bool
	IOBusy  bool

	// Stages holds a short description of what each stage did.
	Stages [NumStages]string
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithICache routes instruction fetches through c.
func WithICache(c *cache.Cache) PipelineOption {
	return func(p *Pipeline) {
		p.icache = c
	}
}

// Pipeline runs the five stages of one core. Each stage has its own lock,
// taken in stage order and released before the next stage starts.
type Pipeline struct {
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	locks [NumStages]sync.Mutex

	// Pipeline registers, holding the latest pass.
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	icache *cache.Cache
	memory *emu.Memory

	stats Statistics
}

// NewPipeline creates a new pipeline over memory.
func NewPipeline(memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{memory: memory}
	for _, opt := range opts {
		opt(p)
	}

	p.fetchStage = NewFetchStage(memory, p.icache)
	p.decodeStage = NewDecodeStage()
	p.executeStage = NewExecuteStage(memory)
	p.memoryStage = NewMemoryStage(memory)
	p.writebackStage = NewWritebackStage()

	return p
}

func (p *Pipeline) inStage(s Stage, f func()) {
	p.locks[s].Lock()
	defer p.locks[s].Unlock()
	f()
}

// Pass runs one instruction of the process whose context is ctx through all
// five stages and advances ctx.PC. A STORE that loses the I/O device leaves
// the PC in place.
func (p *Pipeline) Pass(ctx *process.Context, win Window, io IOPort) (PassResult, error) {
	var (
		res PassResult
		err error
	)

	p.inStage(StageFetch, func() {
		p.ifid = p.fetchStage.Fetch(win, ctx.PC)
		res.Stages[StageFetch] = p.ifid.Text
	})
	if !p.ifid.Valid {
		return res, nil
	}
	res.Fetched = true
	res.PC = p.ifid.PC
	res.CacheHit = p.ifid.CacheHit

	p.inStage(StageDecode, func() {
		p.idex, err = p.decodeStage.Decode(&p.ifid)
		if err == nil {
			res.Stages[StageDecode] = p.idex.Inst.Op.String()
		}
	})
	if err != nil {
		p.idex.Clear()
		return res, fmt.Errorf("decode: %w", err)
	}
	res.Inst = p.idex.Inst

	p.inStage(StageExecute, func() {
		p.exmem = p.executeStage.Execute(&p.idex, ctx, win)
		res.DivideByZero = p.exmem.DivideByZero
		res.Stages[StageExecute] = describeExecute(&p.exmem)
	})

	p.inStage(StageMemory, func() {
		p.memwb = p.memoryStage.Access(&p.exmem, win, io)
		res.Stages[StageMemory] = describeMemory(&p.memwb)
	})

	p.inStage(StageWriteback, func() {
		p.writebackStage.Writeback(&p.memwb, &ctx.Regs)
		if p.memwb.RegWrite {
			res.Stages[StageWriteback] = fmt.Sprintf("R%d", p.memwb.Inst.Rd)
		}
	})

	res.Clamped = p.memwb.Clamped
	res.Requested = p.memwb.Requested
	res.Addr = p.memwb.Addr
	res.IOWrite = p.memwb.IOWrite
	res.IOBusy = p.memwb.IOBusy
	res.Retired = !p.memwb.IOBusy

	if res.Retired {
		ctx.PC = p.exmem.NextPC
	}

	p.stats.Passes++
	if res.Retired {
		p.stats.Instructions++
	}
	if p.icache != nil {
		if res.CacheHit {
			p.stats.CacheHits++
		} else {
			p.stats.CacheMisses++
		}
	}

	return res, nil
}

func describeExecute(r *EXMEMRegister) string {
	switch {
	case r.MemRead || r.MemWrite:
		return fmt.Sprintf("addr %d", r.Addr)
	case r.RegWrite:
		return fmt.Sprintf("= %d", r.ALUResult)
	case r.NextPC != r.PC+1:
		return fmt.Sprintf("-> %d", r.NextPC)
	default:
		return ""
	}
}

func describeMemory(r *MEMWBRegister) string {
	switch {
	case r.IOBusy:
		return "I/O busy"
	case r.IOWrite:
		return fmt.Sprintf("I/O [%d]", r.Addr)
	case r.MemToReg:
		return fmt.Sprintf("[%d] -> %d", r.Addr, r.MemData)
	case r.Inst != nil && r.Inst.Op == insts.OpSTORE:
		return fmt.Sprintf("[%d] <-", r.Addr)
	default:
		return ""
	}
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// UseICache reports whether fetches go through an instruction cache.
func (p *Pipeline) UseICache() bool {
	return p.icache != nil
}

// Reset clears the pipeline registers and statistics.
func (p *Pipeline) Reset() {
	for s := StageFetch; s < NumStages; s++ {
		p.locks[s].Lock()
	}
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.stats = Statistics{}
	for s := NumStages - 1; s >= StageFetch; s-- {
		p.locks[s].Unlock()
	}
}

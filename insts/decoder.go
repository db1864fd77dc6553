// Package insts provides the mcsim instruction definitions and text decoding.
package insts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op represents an opcode.
type Op uint8

// Opcodes.
const (
	OpUnknown Op = iota
	OpLOAD
	OpSTORE
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpIF
	OpELSE
	OpIEND
	OpELSEEND
	OpLOOP
	OpLEND
)

var opNames = map[string]Op{
	"LOAD":    OpLOAD,
	"STORE":   OpSTORE,
	"ADD":     OpADD,
	"SUB":     OpSUB,
	"MUL":     OpMUL,
	"DIV":     OpDIV,
	"IF":      OpIF,
	"ELSE":    OpELSE,
	"I_END":   OpIEND,
	"ELS_END": OpELSEEND,
	"LOOP":    OpLOOP,
	"L_END":   OpLEND,
}

// String returns the mnemonic of the opcode.
func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return "UNKNOWN"
}

// Class groups opcodes by the kind of work they do.
type Class uint8

// Operation classes.
const (
	ClassUnknown Class = iota
	ClassMemory
	ClassArithmetic
	ClassControl
)

// Class returns the operation class of the opcode.
func (o Op) Class() Class {
	switch o {
	case OpLOAD, OpSTORE:
		return ClassMemory
	case OpADD, OpSUB, OpMUL, OpDIV:
		return ClassArithmetic
	case OpIF, OpELSE, OpIEND, OpELSEEND, OpLOOP, OpLEND:
		return ClassControl
	default:
		return ClassUnknown
	}
}

// Cond represents an IF comparison.
type Cond uint8

// Comparison conditions.
const (
	CondEQ Cond = iota // ==
	CondNE             // !=
	CondLT             // <
	CondGT             // >
	CondLE             // <=
	CondGE             // >=
)

var condNames = map[string]Cond{
	"==": CondEQ,
	"!=": CondNE,
	"<":  CondLT,
	">":  CondGT,
	"<=": CondLE,
	">=": CondGE,
}

// NumRegs is the number of architectural registers (R0-R31).
const NumRegs = 32

// Operand is either a register or an immediate.
type Operand struct {
	IsReg bool
	Reg   uint8
	Imm   int64
}

// Instruction represents a decoded instruction.
type Instruction struct {
	Op   Op     // Operation code
	Text string // Normalized source line

	// Rd is the destination register for LOAD and arithmetic, the source
	// register for STORE, and the left-hand side of IF.
	Rd uint8
	// Rn is the first source register of arithmetic. For the two-operand
	// form it equals Rd.
	Rn uint8

	// Src is the second arithmetic operand, the LOAD/STORE address, the IF
	// right-hand side, or the LOOP trip count.
	Src Operand

	// Cond is the IF comparison.
	Cond Cond
}

// ErrMalformed is returned when a line does not decode to a valid instruction.
var ErrMalformed = errors.New("malformed instruction")

// Decoder decodes instruction text into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Classify returns the opcode named by the first token of line without
// validating the operands. Unknown mnemonics return OpUnknown.
func Classify(line string) Op {
	fields := tokenize(line)
	if len(fields) == 0 {
		return OpUnknown
	}
	return opNames[strings.ToUpper(fields[0])]
}

// Normalize returns the canonical text form of line: upper-case mnemonic,
// operands separated by single spaces.
func Normalize(line string) string {
	fields := tokenize(line)
	if len(fields) == 0 {
		return ""
	}
	fields[0] = strings.ToUpper(fields[0])
	return strings.Join(fields, " ")
}

// Decode validates and decodes a single instruction line.
func (d *Decoder) Decode(line string) (*Instruction, error) {
	fields := tokenize(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	op, ok := opNames[strings.ToUpper(fields[0])]
	if !ok {
		return nil, fmt.Errorf("%w: unknown opcode %q", ErrMalformed, fields[0])
	}

	inst := &Instruction{Op: op, Text: Normalize(line)}
	args := fields[1:]

	var err error
	switch op {
	case OpLOAD, OpSTORE:
		err = d.decodeMemory(args, inst)
	case OpADD, OpSUB, OpMUL, OpDIV:
		err = d.decodeArithmetic(args, inst)
	case OpIF:
		err = d.decodeIf(args, inst)
	case OpLOOP:
		err = d.decodeLoop(args, inst)
	default:
		if len(args) != 0 {
			err = fmt.Errorf("%s takes no operands", op)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
	}

	return inst, nil
}

// decodeMemory decodes LOAD Rd addr and STORE Rs addr.
func (d *Decoder) decodeMemory(args []string, inst *Instruction) error {
	if len(args) != 2 {
		return fmt.Errorf("%s expects 2 operands, got %d", inst.Op, len(args))
	}

	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	addr, err := parseOperand(args[1])
	if err != nil {
		return err
	}
	if !addr.IsReg && addr.Imm < 0 {
		return fmt.Errorf("negative address %d", addr.Imm)
	}

	inst.Rd = reg
	inst.Src = addr
	return nil
}

// decodeArithmetic decodes OP Rd op2 and OP Rd Rn op2.
func (d *Decoder) decodeArithmetic(args []string, inst *Instruction) error {
	switch len(args) {
	case 2:
		rd, err := parseReg(args[0])
		if err != nil {
			return err
		}
		src, err := parseOperand(args[1])
		if err != nil {
			return err
		}
		inst.Rd, inst.Rn, inst.Src = rd, rd, src
	case 3:
		rd, err := parseReg(args[0])
		if err != nil {
			return err
		}
		rn, err := parseReg(args[1])
		if err != nil {
			return err
		}
		src, err := parseOperand(args[2])
		if err != nil {
			return err
		}
		inst.Rd, inst.Rn, inst.Src = rd, rn, src
	default:
		return fmt.Errorf("%s expects 2 or 3 operands, got %d", inst.Op, len(args))
	}
	return nil
}

// decodeIf decodes IF Ra cmp op2.
func (d *Decoder) decodeIf(args []string, inst *Instruction) error {
	if len(args) != 3 {
		return fmt.Errorf("IF expects 3 operands, got %d", len(args))
	}

	lhs, err := parseReg(args[0])
	if err != nil {
		return err
	}
	cond, ok := condNames[args[1]]
	if !ok {
		return fmt.Errorf("unknown comparison %q", args[1])
	}
	rhs, err := parseOperand(args[2])
	if err != nil {
		return err
	}

	inst.Rd = lhs
	inst.Cond = cond
	inst.Src = rhs
	return nil
}

// decodeLoop decodes LOOP n and LOOP Rs.
func (d *Decoder) decodeLoop(args []string, inst *Instruction) error {
	if len(args) != 1 {
		return fmt.Errorf("LOOP expects 1 operand, got %d", len(args))
	}

	count, err := parseOperand(args[0])
	if err != nil {
		return err
	}
	inst.Src = count
	return nil
}

func tokenize(line string) []string {
	return strings.Fields(strings.ReplaceAll(line, ",", " "))
}

func parseReg(tok string) (uint8, error) {
	if len(tok) < 2 || (tok[0] != 'R' && tok[0] != 'r') {
		return 0, fmt.Errorf("expected register, got %q", tok)
	}

	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 || n >= NumRegs {
		return 0, fmt.Errorf("invalid register %q", tok)
	}
	return uint8(n), nil
}

func parseOperand(tok string) (Operand, error) {
	if tok != "" && (tok[0] == 'R' || tok[0] == 'r') {
		reg, err := parseReg(tok)
		if err != nil {
			return Operand{}, err
		}
		return Operand{IsReg: true, Reg: reg}, nil
	}

	imm, err := strconv.ParseInt(strings.TrimPrefix(tok, "#"), 10, 64)
	if err != nil {
		return Operand{}, fmt.Errorf("invalid immediate %q", tok)
	}
	return Operand{Imm: imm}, nil
}

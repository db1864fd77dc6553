// Package insts provides the mcsim instruction definitions and text decoding.
//
// Programs are plain text, one instruction per line. The decoder supports:
//   - Memory: LOAD, STORE with an immediate or register address
//   - Arithmetic: ADD, SUB, MUL, DIV with an immediate or register operand
//   - Conditionals: IF, ELSE, I_END, ELS_END
//   - Loops: LOOP, L_END
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode("ADD R1, R2, #5")
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Src.Imm)
package insts

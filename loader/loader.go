// Package loader reads flat-file programs and places them in shared memory.
//
// A program file holds one instruction per line. Blank lines and lines
// starting with ";" or "//" are ignored.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/process"
)

// ErrEmptyProgram is returned when a program has no instruction lines.
var ErrEmptyProgram = errors.New("empty program")

// ProcessCreator creates the PCB of a loaded program.
type ProcessCreator interface {
	CreateProcess(base, limit uint64, count int) (*process.PCB, error)
}

// ReadProgram returns the text of the program file at path.
func ReadProgram(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

// Lines returns the instruction lines of text, trimmed, in order.
func Lines(text string) []string {
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "//") {
			continue
		}
		lines = append(lines, line)
	}

	return lines
}

// NextInstructionLine returns instruction line n (zero based) of text. It
// returns false past the last line.
func NextInstructionLine(text string, n int) (string, bool) {
	lines := Lines(text)
	if n < 0 || n >= len(lines) {
		return "", false
	}
	return lines[n], true
}

// LoadProgram allocates the program text plus dataWords data cells in
// memory, writes the program, and creates its process. The returned PCB's
// Base is where the program starts.
func LoadProgram(
	memory *emu.Memory,
	creator ProcessCreator,
	text string,
	dataWords int,
) (*process.PCB, error) {
	lines := Lines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyProgram
	}

	size := len(lines) + dataWords
	base, err := memory.Allocate(size)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	if err := memory.WriteProgram(base, lines); err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}

	p, err := creator.CreateProcess(base, base+uint64(size), len(lines))
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}

	return p, nil
}

// LoadFile reads the program at path and loads it with LoadProgram.
func LoadFile(
	memory *emu.Memory,
	creator ProcessCreator,
	path string,
	dataWords int,
) (*process.PCB, error) {
	text, err := ReadProgram(path)
	if err != nil {
		return nil, err
	}

	p, err := LoadProgram(memory, creator, text, dataWords)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Package main provides the entry point for mcsim.
// mcsim is a cycle-level multicore processor simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/mcsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("mcsim - Multicore Processor Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: mcsim [options] <program> [program...]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to configuration file (JSON or YAML)")
	fmt.Println("  -policy    Scheduling policy: rr, sjf, lottery, cache-aware")
	fmt.Println("  -cores     Number of cores")
	fmt.Println("  -quantum   Scheduling quantum in cycles")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mcsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mcsim' instead.")
	}
}

// Validate program files against the decoder and measure decode cost.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/mcsim/insts"
	"github.com/sarchlab/mcsim/loader"
)

var sample = []string{
	"LOAD R1, 40",
	"ADD R2, R1, #42",
	"MUL R3, R2, R1",
	"IF R3 >= 10",
	"STORE R3, 41",
	"I_END",
	"LOOP 4",
	"SUB R4, #1",
	"L_END",
}

func main() {
	iterations := flag.Int("n", 100000, "decode iterations for the cost measurement")
	flag.Parse()

	decoder := insts.NewDecoder()

	bad := 0
	for _, path := range flag.Args() {
		text, err := loader.ReadProgram(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		for i, line := range loader.Lines(text) {
			if _, err := decoder.Decode(line); err != nil {
				if !errors.Is(err, insts.ErrMalformed) {
					panic(err)
				}
				bad++
				fmt.Printf("%s: instruction %d: %v\n", path, i, err)
			}
		}
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		for _, line := range sample {
			_, _ = decoder.Decode(line)
		}
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	for i := 0; i < *iterations; i++ {
		for _, line := range sample {
			_, _ = decoder.Decode(line)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := *iterations * len(sample)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Programs checked: %d (%d malformed instructions)\n", flag.NArg(), bad)
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))

	if bad > 0 {
		os.Exit(1)
	}
}

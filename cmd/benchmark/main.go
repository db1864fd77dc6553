// Command benchmark runs the mcsim scheduling benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv       Output results in CSV format (default: human-readable)
//	-no-cache  Disable the instruction cache
//	-cores     Number of cores
//	-quick     Run only the core workloads
//	-policies  Comma-separated policies to compare (default: all)
//
// Example:
//
//	# Compare every policy on every workload
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/mcsim/benchmarks"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	noCache := flag.Bool("no-cache", false, "Disable the instruction cache")
	cores := flag.Int("cores", 2, "Number of cores")
	quick := flag.Bool("quick", false, "Run only the core workloads")
	policies := flag.String("policies", "", "Comma-separated policies to compare (default: all)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	config.Base.CacheEnabled = !*noCache
	config.Base.NumCores = *cores
	config.Output = os.Stdout
	config.Verbose = *verbose
	if *policies != "" {
		config.Policies = strings.Split(*policies, ",")
	}

	if err := config.Base.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *quick {
		harness.AddBenchmarks(benchmarks.GetCoreWorkloads(config.Base.IOAddress))
	} else {
		harness.AddBenchmarks(benchmarks.GetWorkloads(config.Base.IOAddress))
	}

	// Print configuration
	if !*csvOutput {
		fmt.Println("mcsim Scheduling Benchmark Harness")
		fmt.Println("==================================")
		fmt.Printf("Cores:    %d\n", config.Base.NumCores)
		fmt.Printf("Quantum:  %d\n", config.Base.Quantum)
		fmt.Printf("I-Cache:  %v\n", config.Base.CacheEnabled)
		fmt.Printf("Policies: %s\n", strings.Join(config.Policies, ", "))
		fmt.Println("")
	}

	// Run benchmarks
	results := harness.RunAll()

	// Output results
	if *csvOutput {
		harness.PrintCSV(results)
	} else {
		harness.PrintResults(results)
	}

	for _, r := range results {
		if r.Err != nil {
			os.Exit(1)
		}
	}
}

// Package main provides the entry point for mcsim.
// mcsim is a cycle-level multicore processor simulator with pluggable
// process scheduling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/sarchlab/mcsim/arch"
	"github.com/sarchlab/mcsim/config"
)

var (
	configPath = flag.String("config", "", "Path to configuration file (JSON or YAML)")
	saveConfig = flag.String("save-config", "", "Write the effective configuration to this file and exit")
	cores      = flag.Int("cores", 0, "Number of cores (overrides config)")
	quantum    = flag.Int("quantum", 0, "Scheduling quantum in cycles (overrides config)")
	policy     = flag.String("policy", "", "Scheduling policy: rr, sjf, lottery, cache-aware (overrides config)")
	maxCycles  = flag.Uint64("max-cycles", 0, "Cycle limit (overrides config)")
	noCache    = flag.Bool("no-cache", false, "Disable the instruction cache")
	cacheSize  = flag.Int("cache-size", 0, "Number of cache slots (overrides config)")
	seed       = flag.Uint64("seed", 0, "Lottery seed (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config)")
	quiet      = flag.Bool("q", false, "Do not print the final report")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: mcsim [options] <program> [program...]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, flag.Args()); err != nil {
		logger.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cores":
			cfg.NumCores = *cores
		case "quantum":
			cfg.Quantum = *quantum
		case "policy":
			cfg.Policy = *policy
		case "max-cycles":
			cfg.MaxCycles = *maxCycles
		case "no-cache":
			cfg.CacheEnabled = !*noCache
		case "cache-size":
			cfg.CacheSize = *cacheSize
		case "seed":
			cfg.Seed = *seed
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, logger *slog.Logger, programs []string) error {
	c, err := arch.New(cfg, arch.WithLogger(logger))
	if err != nil {
		return err
	}

	for _, path := range programs {
		p, err := c.LoadFile(path)
		if err != nil {
			_ = c.Shutdown()
			return err
		}
		logger.Debug("program loaded", "path", path, "pid", p.PID,
			"base", p.Base, "limit", p.Limit, "instructions", p.InstructionCount)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := c.Run(ctx)
	if !*quiet {
		arch.PrintReport(os.Stdout, m)
	}
	return err
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// sbf-cover generates lcov coverage reports from SBF program counter traces.
// Traces are written by a patched solana-test-validator: every <name>.pcs file holds
// executed program counters and <name>.insns holds the executed instructions.
// For every trace the tool writes <name>.lcov next to it, or <name>.closest_match
// if the trace could not be attributed to any of the deployed programs.
//
// Usage:
//
//	sbf-cover [-config config_file] [-target-dir target] [sbf_trace_dir]
//
// Use -dump to print the address to source line mapping of all debug binaries.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sbfcov/sbfcov/pkg/config"
	"github.com/sbfcov/sbfcov/pkg/cover"
	"github.com/sbfcov/sbfcov/pkg/log"
	"github.com/sbfcov/sbfcov/pkg/tool"
)

func main() {
	var (
		flagConfig          = flag.String("config", "", "configuration file (optional)")
		flagTargetDir       = flag.String("target-dir", "", "cargo target directory with deploy/*.debug files")
		flagProcs           = flag.Int("procs", 0, "number of traces processed in parallel")
		flagIncludeVendored = flag.Bool("include-vendored", false, "report lines in crates under cargo home")
		flagAnnotate        = flag.Bool("annotate", false, "also write annotated sources for every lcov file")
		flagMetrics         = flag.String("metrics", "", "write run counters in Prometheus text format to this file")
		flagDump            = flag.Bool("dump", false, "dump debug maps and exit")
	)
	defer tool.Init()()

	cfg := cover.DefaultConfig()
	if *flagConfig != "" {
		if err := config.LoadFile(*flagConfig, cfg); err != nil {
			tool.Fail(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target-dir":
			cfg.TargetDir = *flagTargetDir
		case "procs":
			cfg.Procs = *flagProcs
		case "include-vendored":
			cfg.IncludeVendored = *flagIncludeVendored
		case "annotate":
			cfg.Annotate = *flagAnnotate
		case "metrics":
			cfg.MetricsFile = *flagMetrics
		}
	})
	switch flag.NArg() {
	case 0:
	case 1:
		cfg.TraceDir = flag.Arg(0)
	default:
		tool.Failf("expected at most one trace directory, got %v", flag.Args())
	}
	if err := cfg.Validate(); err != nil {
		tool.Fail(err)
	}
	if *flagDump {
		dump(cfg)
		return
	}
	summary, err := cover.Run(cfg)
	if err != nil {
		if errors.Is(err, cover.ErrNoDebugInfo) {
			log.Logf(0, "%v", err)
			return
		}
		if errors.Is(err, cover.ErrNoTraceFiles) {
			tool.Failf("%v\nAre you sure your solana-test-validator is patched?", err)
		}
		tool.Fail(err)
	}
	fmt.Fprint(os.Stderr, summary)
}

func dump(cfg *cover.Config) {
	maps, err := cover.LoadDebugMaps(cfg)
	if err != nil {
		if errors.Is(err, cover.ErrNoDebugInfo) {
			log.Logf(0, "%v", err)
			return
		}
		tool.Fail(err)
	}
	if err := cover.DumpDebugMaps(os.Stdout, maps); err != nil {
		tool.Fail(err)
	}
}

// Copyright 2020 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Init parses command line flags and starts profiling if requested.
// Usage: defer tool.Init()().
func Init() func() {
	flagCPUProfile := flag.String("cpuprofile", "", "write CPU profile to this file")
	flagMemProfile := flag.String("memprofile", "", "write memory profile to this file")
	flag.Parse()
	stop, err := startProfiling(*flagCPUProfile, *flagMemProfile)
	if err != nil {
		Fail(err)
	}
	return func() {
		if err := stop(); err != nil {
			Fail(err)
		}
	}
}

func startProfiling(cpuprof, memprof string) (func() error, error) {
	stopCPU := func() error { return nil }
	if cpuprof != "" {
		f, err := os.Create(cpuprof)
		if err != nil {
			return nil, fmt.Errorf("failed to create cpuprofile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		stopCPU = func() error {
			pprof.StopCPUProfile()
			return f.Close()
		}
	}
	return func() error {
		if err := stopCPU(); err != nil {
			return err
		}
		if memprof == "" {
			return nil
		}
		f, err := os.Create(memprof)
		if err != nil {
			return fmt.Errorf("failed to create memprofile file: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write mem profile: %w", err)
		}
		return nil
	}, nil
}

func Failf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}

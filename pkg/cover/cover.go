// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover turns SBF program counter traces into per source line coverage.
//
// Every trace is attributed to one of the deployed programs by comparing the instructions
// recorded along with the trace against the compiled programs, and then the traced addresses
// are mapped to source lines using DWARF of the matching debug binary.
package cover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sbfcov/sbfcov/pkg/cover/backend"
	"github.com/sbfcov/sbfcov/pkg/log"
	"github.com/sbfcov/sbfcov/pkg/osutil"
	"github.com/sbfcov/sbfcov/pkg/sbf"
	"github.com/sbfcov/sbfcov/pkg/stat"
)

var (
	ErrNoDebugInfo  = errors.New("found no debug files")
	ErrNoTraceFiles = errors.New("found no program counter files")
)

const DebugExt = ".debug"

// Debug maps are dumped to the log at this verbosity.
const dumpVerbosity = 3

type Config struct {
	// Cargo target directory, debug binaries are looked up in <target_dir>/deploy.
	TargetDir string `json:"target_dir" yaml:"target_dir"`
	// Directory with *.pcs and *.insns files written by the patched validator.
	TraceDir string `json:"trace_dir" yaml:"trace_dir"`
	// Report lines in crates under vendor_root as well.
	IncludeVendored bool   `json:"include_vendored" yaml:"include_vendored"`
	VendorRoot      string `json:"vendor_root,omitempty" yaml:"vendor_root,omitempty"`
	// Number of traces processed in parallel, 0 means 1.
	Procs int `json:"procs,omitempty" yaml:"procs,omitempty"`
	// Also write annotated sources (<trace>.annotated) for every lcov file.
	Annotate bool `json:"annotate,omitempty" yaml:"annotate,omitempty"`
	// If set, run counters are written there in Prometheus text format.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		TargetDir:       "target",
		TraceDir:        "sbf_trace_dir",
		IncludeVendored: backend.IncludeVendored(),
		VendorRoot:      backend.CargoHome(),
		Procs:           1,
	}
}

func (cfg *Config) Validate() error {
	if cfg.TargetDir == "" {
		return fmt.Errorf("config param target_dir is empty")
	}
	if cfg.TraceDir == "" {
		return fmt.Errorf("config param trace_dir is empty")
	}
	if cfg.Procs < 0 {
		return fmt.Errorf("bad config param procs: %v, want >= 0", cfg.Procs)
	}
	return nil
}

func (cfg *Config) DeployDir() string {
	return filepath.Join(cfg.TargetDir, "deploy")
}

// Outcome is the result of processing of a single trace.
// Exactly one of LCOV and ClosestMatch is set.
type Outcome struct {
	Trace        string
	LCOV         string
	ClosestMatch string
	Annotated    string
	Addrs        int
	LineHits     int
}

type runStats struct {
	set          *stat.Set
	debugFiles   *stat.Val
	mappedAddrs  *stat.Val
	traces       *stat.Val
	traceAddrs   *stat.Val
	lcov         *stat.Val
	closestMatch *stat.Val
	lineHits     *stat.Val
}

func newRunStats() *runStats {
	set := stat.NewSet("sbfcov")
	return &runStats{
		set:          set,
		debugFiles:   set.New("debug_files", "Number of debug binaries with a debug map"),
		mappedAddrs:  set.New("mapped_addrs", "Number of addresses mapped to source lines"),
		traces:       set.New("traces", "Number of processed program counter files"),
		traceAddrs:   set.New("trace_addrs", "Program counters per trace", stat.Distribution{}),
		lcov:         set.New("lcov_files", "Number of written lcov files"),
		closestMatch: set.New("closest_match_files", "Number of traces not attributed to any program"),
		lineHits:     set.New("line_hits", "Line hits per trace", stat.Distribution{}),
	}
}

type opener func(string) (backend.Locator, error)

func (cfg *Config) backendOptions(open opener) backend.Options {
	return backend.Options{
		IncludeVendored: cfg.IncludeVendored,
		VendorRoot:      cfg.VendorRoot,
		Open:            open,
	}
}

// LoadDebugMaps builds debug maps of all debug binaries in the deploy directory.
func LoadDebugMaps(cfg *Config) ([]*backend.DebugMap, error) {
	return loadDebugMaps(cfg, nil)
}

func loadDebugMaps(cfg *Config, open opener) ([]*backend.DebugMap, error) {
	paths, err := osutil.ListFilesExt(cfg.DeployDir(), DebugExt)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	maps, err := backend.MakeAll(paths, cfg.backendOptions(open), cfg.Procs)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoDebugInfo, osutil.Rel(cfg.DeployDir()))
	}
	if log.V(dumpVerbosity) {
		if err := DumpDebugMaps(log.VerboseWriter(dumpVerbosity), maps); err != nil {
			return nil, err
		}
	}
	return maps, nil
}

// Run writes an lcov file (or a closest match file) for every trace in the trace directory.
func Run(cfg *Config) (*Summary, error) {
	return run(cfg, nil)
}

func run(cfg *Config, open opener) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := newRunStats()
	maps, err := loadDebugMaps(cfg, open)
	if err != nil {
		return nil, err
	}
	for _, dm := range maps {
		stats.debugFiles.Add(1)
		stats.mappedAddrs.Add(dm.Len())
	}
	traces, err := osutil.ListFilesExt(cfg.TraceDir, sbf.TraceExt)
	if err != nil {
		return nil, err
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoTraceFiles, osutil.Rel(cfg.TraceDir))
	}
	outcomes := make([]*Outcome, len(traces))
	var eg errgroup.Group
	eg.SetLimit(max(cfg.Procs, 1))
	for i, trace := range traces {
		eg.Go(func() error {
			outcome, err := ProcessTrace(cfg, maps, trace)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	summary := &Summary{
		TraceDir: cfg.TraceDir,
		Traces:   len(traces),
	}
	for _, outcome := range outcomes {
		stats.traces.Add(1)
		stats.traceAddrs.Add(outcome.Addrs)
		if outcome.LCOV != "" {
			stats.lcov.Add(1)
			stats.lineHits.Add(outcome.LineHits)
			summary.LCOV = append(summary.LCOV, outcome.LCOV)
		} else {
			stats.closestMatch.Add(1)
			summary.ClosestMatch = append(summary.ClosestMatch, outcome.ClosestMatch)
		}
	}
	for _, v := range stats.set.Collect() {
		log.Logf(1, "%v: %v", v.Desc, v.Value)
	}
	if cfg.MetricsFile != "" {
		if err := stats.set.WriteTextfile(cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return summary, nil
}

// ProcessTrace attributes the trace to one of maps and writes the report next to it.
// A trace that matches no program is not an error, its outcome refers to a closest match file.
func ProcessTrace(cfg *Config, maps []*backend.DebugMap, trace string) (*Outcome, error) {
	addrs, err := sbf.ReadTrace(trace)
	if err != nil {
		return nil, err
	}
	name := osutil.Rel(trace)
	log.Logf(0, "%v: program counters read: %v", name, len(addrs))
	res, err := Match(maps, trace, addrs)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Trace: trace, Addrs: len(addrs)}
	if !res.Identified() {
		outcome.ClosestMatch, err = WriteClosestMatchFile(trace, res)
		if err != nil {
			return nil, err
		}
		log.Logf(0, "%v: no applicable dwarf, closest match %v (mismatch at %v)",
			name, osutil.Rel(res.Map.Path), res.Mismatch.Index)
		return outcome, nil
	}
	log.Logf(0, "%v: applicable dwarf: %v", name, osutil.Rel(res.Map.Path))
	log.Logf(1, "%v: shift 0x%x", name, res.Shift)
	counts := Aggregate(res.Map, addrs)
	outcome.LineHits = counts.Hits()
	log.Logf(0, "%v: line hits: %v", name, outcome.LineHits)
	outcome.LCOV, err = WriteLCOVFile(trace, counts)
	if err != nil {
		return nil, err
	}
	if cfg.Annotate {
		outcome.Annotated, err = WriteAnnotatedFile(trace, counts)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

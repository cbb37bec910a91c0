// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbfcov/sbfcov/pkg/cover/backend"
	"github.com/sbfcov/sbfcov/pkg/debuginfo"
	"github.com/sbfcov/sbfcov/pkg/sbf"
	"github.com/sbfcov/sbfcov/pkg/sbf/sbftest"
)

const (
	testEntry = 0x120
	// Traced addresses are relative to testBase.
	testBase = 0x100
	testSize = 0x200
)

// Paths through the counter program: the guard, then optionally one of the increments.
var (
	pathNeither = []uint64{0x120, 0x128, 0x150}
	pathLine15  = []uint64{0x120, 0x128, 0x130, 0x138, 0x150}
	pathLine20  = []uint64{0x120, 0x128, 0x140, 0x148, 0x150}
)

type testProgram struct {
	name   string
	debug  string
	source string
	insns  map[uint64]uint64
	lines  map[uint64]int
	// Lines of a vendored crate, see addVendored.
	vendored      string
	vendoredLines map[uint64]int
}

func (p *testProgram) debugMap() *backend.DebugMap {
	var entries []backend.Entry
	for addr, line := range p.lines {
		entries = append(entries, backend.Entry{
			Addr: addr,
			Loc:  backend.Location{File: p.source, Line: uint32(line)},
		})
	}
	return backend.NewDebugMap(p.debug, testEntry, entries)
}

type fakeLocator struct {
	locs map[uint64]debuginfo.Location
}

func (fl *fakeLocator) Locate(addr uint64) (debuginfo.Location, bool) {
	loc, ok := fl.locs[addr]
	return loc, ok
}

func (fl *fakeLocator) Close() error {
	return nil
}

type fixture struct {
	t     *testing.T
	dir   string
	cfg   *Config
	progs map[string]*testProgram
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		t:   t,
		dir: dir,
		cfg: &Config{
			TargetDir:  filepath.Join(dir, "target"),
			TraceDir:   filepath.Join(dir, "sbf_trace_dir"),
			VendorRoot: filepath.Join(dir, "cargo"),
			Procs:      1,
		},
		progs: make(map[string]*testProgram),
	}
}

// addProgram deploys a counter program with an initialization guard at line 10
// wrapping two increments at lines 15 and 20. Programs with different salt differ
// in the first instruction.
func (f *fixture) addProgram(name string, salt uint64) *testProgram {
	p := &testProgram{
		name:   name,
		source: sbftest.WriteFile(f.t, f.dir, filepath.Join("programs", name, "src", "lib.rs"), sourceText(name, 25)),
		insns: map[uint64]uint64{
			0x120: 0x0000000000000161 | salt<<32,
			0x128: 0x0000000000020015,
			0x130: 0x0000000100000007,
			0x138: 0x0000000200000085,
			0x140: 0x0000000200000007,
			0x148: 0x0000000300000085,
			0x150: 0x0000000000000095,
			// Inlined from a vendored crate, unmapped unless addVendored is called.
			0x158: 0x0000000400000007,
			0x160: 0x0000000500000007,
		},
		lines: map[uint64]int{
			0x120: 10,
			0x128: 10,
			0x130: 15,
			0x138: 15,
			0x140: 20,
			0x148: 20,
			0x150: 22,
		},
	}
	deploy := filepath.Join("target", "deploy")
	p.debug = sbftest.WriteFile(f.t, f.dir, filepath.Join(deploy, name+DebugExt), sbftest.ELF(testEntry, testSize))
	sbftest.WriteFile(f.t, f.dir, filepath.Join(deploy, name+".so"), sbftest.Program(testSize, p.insns))
	f.progs[p.debug] = p
	return p
}

// addVendored maps the tail of the program to a crate under the vendor root.
func (f *fixture) addVendored(p *testProgram) string {
	rel, err := filepath.Rel(f.dir, f.cfg.VendorRoot)
	if err != nil {
		f.t.Fatal(err)
	}
	p.vendored = sbftest.WriteFile(f.t, f.dir, filepath.Join(rel, "registry", "src", "dep", "src", "lib.rs"),
		sourceText("dep", 5))
	p.vendoredLines = map[uint64]int{
		0x158: 3,
		0x160: 4,
	}
	return p.vendored
}

func sourceText(name string, lines int) []byte {
	buf := new(strings.Builder)
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(buf, "// %v line %v\n", name, i)
	}
	return []byte(buf.String())
}

// addTrace writes a trace of the program executing vaddrs.
// Calls are patched by the loader, so their recorded words differ from the compiled ones.
func (f *fixture) addTrace(name string, p *testProgram, vaddrs ...uint64) string {
	var words, insns []uint64
	for _, addr := range vaddrs {
		insn := p.insns[addr]
		if sbf.Insn(insn).IsCall() {
			insn ^= 0xffffffff00000000
		}
		words = append(words, (addr-testBase)/sbf.InsnSize)
		insns = append(insns, insn)
	}
	return f.writeTrace(name, words, insns)
}

func (f *fixture) writeTrace(name string, words, insns []uint64) string {
	dir, err := filepath.Rel(f.dir, f.cfg.TraceDir)
	if err != nil {
		f.t.Fatal(err)
	}
	sbftest.WriteFile(f.t, f.dir, filepath.Join(dir, name+sbf.InsnsExt), sbftest.Words(insns...))
	return sbftest.WriteFile(f.t, f.dir, filepath.Join(dir, name+sbf.TraceExt), sbftest.Words(words...))
}

func (f *fixture) readTrace(trace string) []uint64 {
	addrs, err := sbf.ReadTrace(trace)
	if err != nil {
		f.t.Fatal(err)
	}
	return addrs
}

func (f *fixture) open(path string) (backend.Locator, error) {
	p := f.progs[path]
	if p == nil {
		return nil, fmt.Errorf("%w: %v", debuginfo.ErrDebugInfoUnavailable, path)
	}
	locs := make(map[uint64]debuginfo.Location)
	for addr, line := range p.lines {
		locs[addr] = debuginfo.Location{File: p.source, Line: line, Column: 5}
	}
	for addr, line := range p.vendoredLines {
		locs[addr] = debuginfo.Location{File: p.vendored, Line: line, Column: 1}
	}
	return &fakeLocator{locs}, nil
}

func repeat(n int, path []uint64) []uint64 {
	var res []uint64
	for i := 0; i < n; i++ {
		res = append(res, path...)
	}
	return res
}

func readFile(t *testing.T, file string) string {
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

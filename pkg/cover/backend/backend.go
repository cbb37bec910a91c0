// Copyright 2020 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package backend builds address to source line maps of SBF debug binaries.
package backend

import (
	"fmt"
	"sort"

	"github.com/sbfcov/sbfcov/pkg/sbf"
)

// Location is a resolved source location. The zero value means unresolved.
type Location struct {
	File string
	Line uint32
}

func (loc Location) String() string {
	return fmt.Sprintf("%v:%v", loc.File, loc.Line)
}

type Entry struct {
	Addr uint64
	Loc  Location
	Func string
}

// DebugMap maps addresses of a debug binary to source locations.
// It is immutable once built and can be shared between goroutines.
type DebugMap struct {
	Path      string
	EntryAddr uint64
	// Entries are sorted by address.
	Entries []Entry
	index   map[uint64]int
}

func NewDebugMap(path string, entryAddr uint64, entries []Entry) *DebugMap {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Addr < entries[j].Addr
	})
	dm := &DebugMap{
		Path:      path,
		EntryAddr: entryAddr,
		Entries:   entries,
		index:     make(map[uint64]int, len(entries)),
	}
	for i, ent := range entries {
		if prev, ok := dm.index[ent.Addr]; ok {
			panic(fmt.Sprintf("duplicate address 0x%x in %v (%v and %v)",
				ent.Addr, path, entries[prev].Loc, ent.Loc))
		}
		dm.index[ent.Addr] = i
	}
	return dm
}

// Lookup returns the location of addr.
func (dm *DebugMap) Lookup(addr uint64) (Location, bool) {
	idx, ok := dm.index[addr]
	if !ok {
		return Location{}, false
	}
	return dm.Entries[idx].Loc, true
}

// Files returns source files in the order of their first appearance in the address space.
func (dm *DebugMap) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, ent := range dm.Entries {
		if !seen[ent.Loc.File] {
			seen[ent.Loc.File] = true
			files = append(files, ent.Loc.File)
		}
	}
	return files
}

func (dm *DebugMap) Len() int {
	return len(dm.Entries)
}

// CompiledPath returns path of the stripped program (*.so) deployed along with the debug binary.
func (dm *DebugMap) CompiledPath() string {
	return sbf.WithExt(dm.Path, ".so")
}

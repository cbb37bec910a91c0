// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover turns SBF program counter traces into per source line coverage.
package cover

import (
	"sort"

	"github.com/sbfcov/sbfcov/pkg/cover/backend"
)

// FileLineCounts holds hit counts per source line.
// A line with count 0 is traceable but was not executed.
type FileLineCounts struct {
	files []string
	lines map[string]map[uint32]int
}

type LineCount struct {
	Line  uint32
	Count int
}

func newFileLineCounts() *FileLineCounts {
	return &FileLineCounts{
		lines: make(map[string]map[uint32]int),
	}
}

func (c *FileLineCounts) init(loc backend.Location) {
	lines := c.lines[loc.File]
	if lines == nil {
		lines = make(map[uint32]int)
		c.lines[loc.File] = lines
		c.files = append(c.files, loc.File)
	}
	if _, ok := lines[loc.Line]; !ok {
		lines[loc.Line] = 0
	}
}

func (c *FileLineCounts) hit(loc backend.Location) {
	c.init(loc)
	c.lines[loc.File][loc.Line]++
}

// Files returns files in the order of their first appearance in the debug map.
func (c *FileLineCounts) Files() []string {
	return c.files
}

// Lines returns line counts of the file sorted by line.
func (c *FileLineCounts) Lines(file string) []LineCount {
	var res []LineCount
	for line, count := range c.lines[file] {
		res = append(res, LineCount{line, count})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Line < res[j].Line
	})
	return res
}

// Count returns the hit count of the line and whether the line is traceable.
func (c *FileLineCounts) Count(file string, line uint32) (int, bool) {
	count, ok := c.lines[file][line]
	return count, ok
}

// Hits returns the total number of line hits.
func (c *FileLineCounts) Hits() int {
	total := 0
	for _, lines := range c.lines {
		for _, count := range lines {
			total += count
		}
	}
	return total
}

// LineHits collapses runs of consecutive addresses that resolve to the same location
// into one hit and drops addresses without a location.
// Addresses must already be shifted into the address space of dm.
func LineHits(dm *backend.DebugMap, addrs []uint64) []backend.Location {
	var hits []backend.Location
	var prev backend.Location
	prevOK := false
	for i, addr := range addrs {
		loc, ok := dm.Lookup(addr)
		if i != 0 && ok == prevOK && loc == prev {
			continue
		}
		prev, prevOK = loc, ok
		if ok {
			hits = append(hits, loc)
		}
	}
	return hits
}

// Aggregate counts line hits of the trace.
// Every line present in the debug map is reported, even if it was not hit.
func Aggregate(dm *backend.DebugMap, addrs []uint64) *FileLineCounts {
	counts := newFileLineCounts()
	for _, ent := range dm.Entries {
		counts.init(ent.Loc)
	}
	for _, loc := range LineHits(dm, addrs) {
		counts.hit(loc)
	}
	return counts
}

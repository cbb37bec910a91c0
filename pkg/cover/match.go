// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"encoding/binary"
	"fmt"

	"github.com/sbfcov/sbfcov/pkg/cover/backend"
	"github.com/sbfcov/sbfcov/pkg/log"
	"github.com/sbfcov/sbfcov/pkg/osutil"
	"github.com/sbfcov/sbfcov/pkg/sbf"
)

// Mismatch is the first position where a compiled program disagrees with the traced instructions.
// The zero value means that no comparison was possible.
type Mismatch struct {
	Index    int
	Addr     sbf.Vaddr
	Expected sbf.Insn
	Actual   sbf.Insn
}

// Candidate is a result of comparing a trace with a single debug map.
type Candidate struct {
	Map *backend.DebugMap
	// Mismatch is nil if the trace matches the program exactly.
	Mismatch *Mismatch
}

type MatchResult struct {
	Map   *backend.DebugMap
	Shift uint64
	// Mismatch is nil if Map was identified. Otherwise Map is the closest match
	// (the candidate that agrees with the trace for the longest prefix).
	Mismatch   *Mismatch
	Candidates []Candidate
}

func (res *MatchResult) Identified() bool {
	return res.Mismatch == nil
}

// Match finds the debug map that produced the trace.
// On success addrs are shifted in place into the address space of the debug map.
func Match(maps []*backend.DebugMap, tracePath string, addrs []uint64) (*MatchResult, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("no candidate debug maps for %v", tracePath)
	}
	res := new(MatchResult)
	for _, dm := range maps {
		mismatch, err := findMismatch(dm, tracePath, addrs)
		if err != nil {
			return nil, err
		}
		if mismatch != nil {
			log.Logf(2, "%v: %v mismatches at index %v", osutil.Rel(tracePath), osutil.Rel(dm.Path), mismatch.Index)
		}
		res.Candidates = append(res.Candidates, Candidate{dm, mismatch})
	}
	for _, cand := range res.Candidates {
		if cand.Mismatch != nil {
			continue
		}
		res.Map = cand.Map
		res.Shift = cand.Map.EntryAddr - addrs[0]
		for i := range addrs {
			addrs[i] += res.Shift
		}
		if addrs[0] != res.Map.EntryAddr {
			panic(fmt.Sprintf("first address 0x%x of shifted trace %v does not match entry 0x%x of %v",
				addrs[0], tracePath, res.Map.EntryAddr, res.Map.Path))
		}
		return res, nil
	}
	closest := res.Candidates[0]
	for _, cand := range res.Candidates[1:] {
		if cand.Mismatch.Index > closest.Mismatch.Index {
			closest = cand
		}
	}
	res.Map = closest.Map
	res.Mismatch = closest.Mismatch
	return res, nil
}

// findMismatch compares instructions of the compiled program at the (shifted) traced addresses
// with the instructions recorded along with the trace.
// Call instructions are skipped since they are patched at load time.
func findMismatch(dm *backend.DebugMap, tracePath string, addrs []uint64) (*Mismatch, error) {
	if len(addrs) == 0 || dm.EntryAddr < addrs[0] {
		return new(Mismatch), nil
	}
	shift := dm.EntryAddr - addrs[0]
	prog, err := osutil.MapFile(dm.CompiledPath())
	if err != nil {
		return nil, err
	}
	defer prog.Close()
	insns, err := sbf.OpenInsns(sbf.WithExt(tracePath, sbf.InsnsExt))
	if err != nil {
		return nil, err
	}
	defer insns.Close()
	size := uint64(prog.Size())
	var buf [sbf.InsnSize]byte
	for i, addr := range addrs {
		addr += shift
		if size < sbf.InsnSize || addr > size-sbf.InsnSize {
			// The trace runs outside of the program, so it can't be this program.
			actual, err := insns.Next()
			if err != nil {
				return nil, err
			}
			return &Mismatch{i, sbf.Vaddr(addr), 0, actual}, nil
		}
		if _, err := prog.ReadAt(buf[:], int64(addr)); err != nil {
			return nil, fmt.Errorf("failed to read %v: %w", prog.Name(), err)
		}
		expected := sbf.Insn(binary.LittleEndian.Uint64(buf[:]))
		actual, err := insns.Next()
		if err != nil {
			return nil, err
		}
		if expected.IsCall() {
			continue
		}
		if expected != actual {
			return &Mismatch{i, sbf.Vaddr(addr), expected, actual}, nil
		}
	}
	return nil, nil
}

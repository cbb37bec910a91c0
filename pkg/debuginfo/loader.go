// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package debuginfo reads ELF headers and DWARF line tables of SBF debug binaries.
package debuginfo

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"sort"

	"github.com/ianlancetaylor/demangle"
)

// Location is a source location of an address.
// Line and Column are 0 if unknown.
type Location struct {
	File   string
	Line   int
	Column int
	Func   string
}

// Loader resolves addresses of a single binary into source locations.
// It is not safe for concurrent use.
type Loader struct {
	ef        *elf.File
	sequences []sequence
	symbols   []elf.Symbol
	funcCache map[string]string
}

// sequence is a contiguous run of line table rows [start, end).
type sequence struct {
	start uint64
	end   uint64
	rows  []row
}

type row struct {
	addr   uint64
	file   string
	line   int
	column int
}

// Open loads line tables and symbols of the binary.
func Open(bin string) (ld *Loader, err error) {
	defer func() {
		// debug/dwarf is known to panic on some malformed inputs.
		if recErr := recover(); recErr != nil {
			ld = nil
			err = fmt.Errorf("%w: panic while parsing DWARF of %v: %v", ErrDebugInfoUnavailable, bin, recErr)
		}
	}()
	ef, err := elf.Open(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open binary %v: %w", ErrDebugInfoUnavailable, bin, err)
	}
	dw, err := ef.DWARF()
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("%w: failed to parse DWARF %v: %w", ErrDebugInfoUnavailable, bin, err)
	}
	ld = &Loader{
		ef:        ef,
		funcCache: make(map[string]string),
	}
	if err := ld.readLineTables(dw); err != nil {
		ef.Close()
		return nil, fmt.Errorf("%w: failed to read line tables of %v: %w", ErrDebugInfoUnavailable, bin, err)
	}
	ld.readSymbols()
	return ld, nil
}

func (ld *Loader) readLineTables(dw *dwarf.Data) error {
	for r := dw.Reader(); ; {
		ent, err := r.Next()
		if err != nil {
			return err
		}
		if ent == nil {
			break
		}
		if ent.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := dw.LineReader(ent)
		if err != nil {
			return err
		}
		r.SkipChildren()
		if lr == nil {
			continue
		}
		if err := ld.readLineTable(lr); err != nil {
			return err
		}
	}
	sort.SliceStable(ld.sequences, func(i, j int) bool {
		return ld.sequences[i].start < ld.sequences[j].start
	})
	return nil
}

func (ld *Loader) readLineTable(lr *dwarf.LineReader) error {
	var rows []row
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if !entry.EndSequence {
			r := row{
				addr:   entry.Address,
				line:   entry.Line,
				column: entry.Column,
			}
			if entry.File != nil {
				r.file = entry.File.Name
			}
			rows = append(rows, r)
			continue
		}
		if len(rows) != 0 && rows[0].addr < entry.Address {
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].addr < rows[j].addr
			})
			ld.sequences = append(ld.sequences, sequence{
				start: rows[0].addr,
				end:   entry.Address,
				rows:  rows,
			})
		}
		rows = nil
	}
	return nil
}

func (ld *Loader) readSymbols() {
	symbols, _ := ld.ef.Symbols()
	for _, s := range symbols {
		if elf.ST_TYPE(s.Info) == elf.STT_FUNC {
			ld.symbols = append(ld.symbols, s)
		}
	}
	sort.Slice(ld.symbols, func(i, j int) bool {
		if ld.symbols[i].Value != ld.symbols[j].Value {
			return ld.symbols[i].Value < ld.symbols[j].Value
		}
		return ld.symbols[i].Size < ld.symbols[j].Size
	})
}

// Locate returns the source location of the addr.
// The second result is false if the address is not covered by any line table.
func (ld *Loader) Locate(addr uint64) (Location, bool) {
	idx := sort.Search(len(ld.sequences), func(i int) bool {
		return ld.sequences[i].start > addr
	})
	if idx == 0 {
		return Location{}, false
	}
	seq := &ld.sequences[idx-1]
	if addr >= seq.end {
		return Location{}, false
	}
	ridx := sort.Search(len(seq.rows), func(i int) bool {
		return seq.rows[i].addr > addr
	})
	r := seq.rows[ridx-1]
	return Location{
		File:   r.file,
		Line:   r.line,
		Column: r.column,
		Func:   ld.funcName(addr),
	}, true
}

func (ld *Loader) funcName(addr uint64) string {
	idx := sort.Search(len(ld.symbols), func(i int) bool {
		return ld.symbols[i].Value > addr
	})
	if idx == 0 {
		return ""
	}
	s := ld.symbols[idx-1]
	if s.Size != 0 && addr >= s.Value+s.Size {
		return ""
	}
	return ld.demangle(s.Name)
}

func (ld *Loader) demangle(name string) string {
	if res, ok := ld.funcCache[name]; ok {
		return res
	}
	res := name
	if d, err := demangle.ToString(name, demangle.NoParams); err == nil {
		res = d
	}
	ld.funcCache[name] = res
	return res
}

func (ld *Loader) Close() error {
	return ld.ef.Close()
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backend

import (
	"bufio"
	"fmt"
	"io"
)

// Dump writes the map in a human-readable form: one line per address where the location changes.
func Dump(w io.Writer, dm *DebugMap) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%v: entry 0x%x\n", dm.Path, dm.EntryAddr)
	var prev Location
	prevFunc := ""
	for _, ent := range dm.Entries {
		if ent.Loc == prev {
			continue
		}
		prev = ent.Loc
		if ent.Func != "" && ent.Func != prevFunc {
			prevFunc = ent.Func
			fmt.Fprintf(bw, "0x%x: %v (%v)\n", ent.Addr, ent.Loc, ent.Func)
			continue
		}
		fmt.Fprintf(bw, "0x%x: %v\n", ent.Addr, ent.Loc)
	}
	return bw.Flush()
}

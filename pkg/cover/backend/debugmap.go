// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sbfcov/sbfcov/pkg/debuginfo"
	"github.com/sbfcov/sbfcov/pkg/log"
	"github.com/sbfcov/sbfcov/pkg/osutil"
	"github.com/sbfcov/sbfcov/pkg/sbf"
)

// IncludeVendoredEnv enables coverage of files under the vendor root (crates in cargo home).
const IncludeVendoredEnv = "INCLUDE_CARGO"

// Locator resolves addresses into source locations, see debuginfo.Loader.
type Locator interface {
	Locate(addr uint64) (debuginfo.Location, bool)
	Close() error
}

type Options struct {
	// IncludeVendored keeps locations in files under VendorRoot.
	IncludeVendored bool
	VendorRoot      string
	// Open opens the debug info reader, debuginfo.Open if nil.
	Open func(path string) (Locator, error)
	// FileExists is osutil.IsExist if nil.
	FileExists func(string) bool
}

// CargoHome returns $CARGO_HOME or ~/.cargo. It is computed once per process.
var CargoHome = sync.OnceValue(func() string {
	if dir := os.Getenv("CARGO_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cargo")
})

// IncludeVendored returns true if IncludeVendoredEnv is set in the environment.
func IncludeVendored() bool {
	_, ok := os.LookupEnv(IncludeVendoredEnv)
	return ok
}

func openLoader(path string) (Locator, error) {
	return debuginfo.Open(path)
}

type makeStats struct {
	unresolved int
	noLine     int
	missing    int
	vendored   int
}

// Make builds the debug map of the debug binary.
// Every InsnSize-aligned address below the binary size is resolved; only addresses that map
// to an existing (and, unless opts.IncludeVendored, non-vendored) source line are kept.
func Make(path string, opts Options) (*DebugMap, error) {
	entryAddr, err := debuginfo.EntryAddress(path)
	if err != nil {
		return nil, err
	}
	open := opts.Open
	if open == nil {
		open = openLoader
	}
	exists := opts.FileExists
	if exists == nil {
		exists = osutil.IsExist
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	ld, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ld.Close()

	vendorPrefix := ""
	if !opts.IncludeVendored && opts.VendorRoot != "" {
		vendorPrefix = filepath.Clean(opts.VendorRoot) + string(filepath.Separator)
	}
	fileOK := make(map[string]bool)
	var stats makeStats
	var entries []Entry
	for addr := uint64(0); addr < uint64(st.Size()); addr += sbf.InsnSize {
		loc, ok := ld.Locate(addr)
		if !ok || loc.File == "" {
			stats.unresolved++
			continue
		}
		// Rows without line or column are compiler generated.
		if loc.Line <= 0 || loc.Column <= 0 {
			stats.noLine++
			continue
		}
		ok, cached := fileOK[loc.File]
		if !cached {
			ok = exists(loc.File)
			fileOK[loc.File] = ok
		}
		if !ok {
			stats.missing++
			continue
		}
		if vendorPrefix != "" && strings.HasPrefix(loc.File, vendorPrefix) {
			stats.vendored++
			continue
		}
		entries = append(entries, Entry{
			Addr: addr,
			Loc: Location{
				File: loc.File,
				Line: uint32(loc.Line),
			},
			Func: loc.Func,
		})
	}
	dm := NewDebugMap(path, entryAddr, entries)
	log.Logf(1, "%v: entry 0x%x, %v addresses mapped to %v files (unresolved %v, no line %v, missing file %v, vendored %v)",
		osutil.Rel(path), entryAddr, dm.Len(), len(dm.Files()),
		stats.unresolved, stats.noLine, stats.missing, stats.vendored)
	return dm, nil
}

// MakeAll builds debug maps for all paths using up to procs goroutines.
// The result preserves order of paths; the first error aborts the whole operation.
func MakeAll(paths []string, opts Options, procs int) ([]*DebugMap, error) {
	maps := make([]*DebugMap, len(paths))
	var eg errgroup.Group
	eg.SetLimit(max(procs, 1))
	for i, path := range paths {
		eg.Go(func() error {
			dm, err := Make(path, opts)
			if err != nil {
				return fmt.Errorf("failed to build debug map for %v: %w", path, err)
			}
			maps[i] = dm
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return maps, nil
}

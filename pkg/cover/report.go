// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sbfcov/sbfcov/pkg/cover/backend"
	"github.com/sbfcov/sbfcov/pkg/osutil"
	"github.com/sbfcov/sbfcov/pkg/sbf"
)

const (
	LCOVExt         = ".lcov"
	ClosestMatchExt = ".closest_match"
)

// WriteLCOV writes counts in the lcov tracefile format.
func WriteLCOV(w io.Writer, counts *FileLineCounts) error {
	bw := bufio.NewWriter(w)
	for _, file := range counts.Files() {
		fmt.Fprintf(bw, "SF:%v\n", file)
		for _, lc := range counts.Lines(file) {
			fmt.Fprintf(bw, "DA:%v,%v\n", lc.Line, lc.Count)
		}
		fmt.Fprintf(bw, "end_of_record\n")
	}
	return bw.Flush()
}

// WriteLCOVFile writes counts next to the trace and returns the path of the written file.
func WriteLCOVFile(tracePath string, counts *FileLineCounts) (string, error) {
	return writeFile(sbf.WithExt(tracePath, LCOVExt), func(w io.Writer) error {
		return WriteLCOV(w, counts)
	})
}

// WriteClosestMatch describes why the trace could not be attributed to any program.
// The format is meant for humans only.
func WriteClosestMatch(w io.Writer, tracePath string, res *MatchResult) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "trace:      %v\n", tracePath)
	fmt.Fprintf(bw, "debug:      %v\n", res.Map.Path)
	fmt.Fprintf(bw, "mismatch:\n")
	fmt.Fprintf(bw, "  index:    %v\n", res.Mismatch.Index)
	fmt.Fprintf(bw, "  vaddr:    %v\n", res.Mismatch.Addr)
	fmt.Fprintf(bw, "  expected: %v\n", res.Mismatch.Expected)
	fmt.Fprintf(bw, "  actual:   %v\n", res.Mismatch.Actual)
	if len(res.Candidates) > 1 {
		fmt.Fprintf(bw, "candidates:\n")
		for _, cand := range res.Candidates {
			fmt.Fprintf(bw, "  %v: mismatch at %v\n", cand.Map.Path, cand.Mismatch.Index)
		}
	}
	return bw.Flush()
}

func WriteClosestMatchFile(tracePath string, res *MatchResult) (string, error) {
	return writeFile(sbf.WithExt(tracePath, ClosestMatchExt), func(w io.Writer) error {
		return WriteClosestMatch(w, tracePath, res)
	})
}

func writeFile(path string, write func(io.Writer) error) (string, error) {
	f, err := osutil.CreateFile(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %v: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %v: %w", path, err)
	}
	return path, nil
}

// Summary lists the files written by Run.
type Summary struct {
	TraceDir     string
	Traces       int
	LCOV         []string
	ClosestMatch []string
}

func (s *Summary) String() string {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "\nProcessed %v of %v program counter files\n\n", len(s.LCOV), s.Traces)
	fmt.Fprintf(buf, "Lcov files written: %v\n\n", listPaths(s.LCOV))
	fmt.Fprintf(buf, "Closest match files written: %v\n\n", listPaths(s.ClosestMatch))
	fmt.Fprintf(buf, "If you are done generating lcov files, try running:\n\n")
	fmt.Fprintf(buf, "    genhtml --output-directory coverage %v/*%v && open coverage/index.html\n",
		osutil.Rel(s.TraceDir), LCOVExt)
	return buf.String()
}

func listPaths(paths []string) string {
	if len(paths) == 0 {
		return "[]"
	}
	buf := new(strings.Builder)
	buf.WriteString("[\n")
	for _, path := range paths {
		fmt.Fprintf(buf, "    %q,\n", osutil.Rel(path))
	}
	buf.WriteString("]")
	return buf.String()
}

// DumpDebugMaps writes all debug maps in the backend.Dump format.
func DumpDebugMaps(w io.Writer, maps []*backend.DebugMap) error {
	for _, dm := range maps {
		if err := backend.Dump(w, dm); err != nil {
			return err
		}
	}
	return nil
}

// Copyright 2016 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
//   - ability to redirect all output
package log

import (
	"flag"
	"io"
	golog "log"
	"os"
	"sync/atomic"
)

var (
	flagV     = flag.Int("vv", 0, "verbosity")
	verbosity atomic.Int64
	logger    = golog.New(os.Stderr, "", 0)
)

func init() {
	verbosity.Store(-1)
}

// SetVerbosity overrides the -vv flag value.
func SetVerbosity(v int) {
	verbosity.Store(int64(v))
}

// V reports whether messages of verbosity v are printed.
func V(v int) bool {
	cur := verbosity.Load()
	if cur < 0 {
		cur = int64(*flagV)
	}
	return int64(v) <= cur
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Logf(v int, msg string, args ...interface{}) {
	if V(v) {
		logger.Printf(msg, args...)
	}
}

// VerboseWriter is an io.Writer that logs whatever is written with the given verbosity.
type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}

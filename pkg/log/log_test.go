// Copyright 2016 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"bytes"
	"fmt"
	"os"
	"testing"
)

func TestVerbosity(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	defer SetVerbosity(-1)

	tests := []struct {
		verbosity int
		want      string
	}{
		{0, "v0\n"},
		{1, "v0\nv1\n"},
		{2, "v0\nv1\nv2\n"},
	}
	for _, test := range tests {
		buf.Reset()
		SetVerbosity(test.verbosity)
		for v := 0; v < 3; v++ {
			Logf(v, "v%v", v)
		}
		if got := buf.String(); got != test.want {
			t.Fatalf("verbosity %v: want %q, got %q", test.verbosity, test.want, got)
		}
	}
}

func TestVerboseWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	defer SetVerbosity(-1)
	SetVerbosity(1)
	fmt.Fprintf(VerboseWriter(1), "0x%x: %v", 0x120, "lib.rs:15")
	fmt.Fprintf(VerboseWriter(2), "hidden")
	if got, want := buf.String(), "0x120: lib.rs:15\n"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

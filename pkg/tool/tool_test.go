// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiling(t *testing.T) {
	dir := t.TempDir()
	cpuprof := filepath.Join(dir, "cpu.prof")
	memprof := filepath.Join(dir, "mem.prof")
	stop, err := startProfiling(cpuprof, memprof)
	require.NoError(t, err)
	require.NoError(t, stop())
	for _, file := range []string{cpuprof, memprof} {
		st, err := os.Stat(file)
		require.NoError(t, err)
		assert.NotZero(t, st.Size(), file)
	}
}

func TestProfilingDisabled(t *testing.T) {
	stop, err := startProfiling("", "")
	require.NoError(t, err)
	require.NoError(t, stop())
}

func TestProfilingBadPath(t *testing.T) {
	_, err := startProfiling(filepath.Join(t.TempDir(), "missing", "cpu.prof"), "")
	require.Error(t, err)
}

// Copyright 2024 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := NewSet("test")
	traces := s.New("traces", "processed traces")
	reports := s.New("reports", "written reports")
	hits := s.New("line_hits", "line hits per trace", Distribution{})
	assert.Equal(t, 0, hits.Val())
	traces.Add(1)
	traces.Add(2)
	reports.Add(1)
	hits.Add(10)
	hits.Add(20)
	assert.Equal(t, 3, traces.Val())
	assert.Equal(t, 15, hits.Val())
	assert.Equal(t, []UI{
		{"traces", "processed traces", 3},
		{"reports", "written reports", 1},
		{"line_hits", "line hits per trace", 15},
	}, s.Collect())
	assert.Panics(t, func() { s.New("traces", "again") })
	assert.Panics(t, func() { s.New("bad", "option", 42) })
}

func TestWriteTextfile(t *testing.T) {
	s := NewSet("sbfcov")
	s.New("traces", "processed traces").Add(2)
	s.New("line_hits", "line hits per trace", Distribution{}).Add(4)
	file := filepath.Join(t.TempDir(), "sbfcov.prom")
	require.NoError(t, s.WriteTextfile(file))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# HELP sbfcov_traces_total processed traces")
	assert.Contains(t, string(data), "sbfcov_traces_total 2")
	assert.Contains(t, string(data), "sbfcov_line_hits_mean 4")
}

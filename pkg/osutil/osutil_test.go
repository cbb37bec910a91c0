// Copyright 2017 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExist(t *testing.T) {
	if f := os.Args[0]; !IsExist(f) {
		t.Fatalf("executable %v does not exist", f)
	}
	if f := os.Args[0] + "-foo-bar-buz"; IsExist(f) {
		t.Fatalf("file %v exists", f)
	}
}

func TestListFilesExt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pcs", "a.pcs", "a.insns", "c.pcs.bak", "pcs"} {
		require.NoError(t, WriteFile(filepath.Join(dir, name), nil))
	}
	require.NoError(t, MkdirAll(filepath.Join(dir, "d.pcs")))
	files, err := ListFilesExt(dir, ".pcs")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pcs"), filepath.Join(dir, "b.pcs")}, files)

	_, err = ListFilesExt(filepath.Join(dir, "missing"), ".pcs")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing")
}

func TestRel(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("x", "y.lcov"), Rel(filepath.Join(wd, "x", "y.lcov")))
	assert.Equal(t, "y.lcov", Rel("y.lcov"))
	outside := filepath.Join(filepath.Dir(wd), "other", "y.lcov")
	assert.Equal(t, outside, Rel(outside))
}

func TestMapFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prog.so")
	require.NoError(t, WriteFile(file, []byte("0123456789abcdef")))
	mf, err := MapFile(file)
	require.NoError(t, err)
	defer mf.Close()
	assert.Equal(t, int64(16), mf.Size())
	assert.Equal(t, file, mf.Name())
	buf := make([]byte, 8)
	n, err := mf.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "89abcdef", string(buf))
	_, err = mf.ReadAt(buf, 12)
	assert.ErrorIs(t, err, io.EOF)
	_, err = mf.ReadAt(buf, 100)
	assert.ErrorIs(t, err, io.EOF)

	empty := filepath.Join(dir, "empty.so")
	require.NoError(t, WriteFile(empty, nil))
	mf2, err := MapFile(empty)
	require.NoError(t, err)
	defer mf2.Close()
	_, err = mf2.ReadAt(buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

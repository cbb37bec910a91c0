// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !unix

package osutil

import (
	"io"
	"os"
)

type MappedFile struct {
	name string
	f    *os.File
	size int64
}

// MapFile opens the file for random access reads.
func MapFile(name string) (*MappedFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MappedFile{name: name, f: f, size: st.Size()}, nil
}

func (mf *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= mf.size {
		return 0, io.EOF
	}
	return mf.f.ReadAt(p, off)
}

func (mf *MappedFile) Size() int64 {
	return mf.size
}

func (mf *MappedFile) Name() string {
	return mf.name
}

func (mf *MappedFile) Close() error {
	return mf.f.Close()
}

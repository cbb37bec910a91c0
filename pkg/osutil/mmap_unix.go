// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build unix

package osutil

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a read-only view of a whole file.
type MappedFile struct {
	name string
	data []byte
}

// MapFile maps the file into memory read-only.
func MapFile(name string) (*MappedFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mf := &MappedFile{name: name}
	if st.Size() == 0 {
		return mf, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %v: %w", name, err)
	}
	mf.data = data
	return mf, nil
}

func (mf *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(mf.data)) {
		return 0, io.EOF
	}
	n := copy(p, mf.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (mf *MappedFile) Size() int64 {
	return int64(len(mf.data))
}

func (mf *MappedFile) Name() string {
	return mf.name
}

func (mf *MappedFile) Close() error {
	if mf.data == nil {
		return nil
	}
	data := mf.data
	mf.data = nil
	return unix.Munmap(data)
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sbftest creates SBF build and trace artifacts for tests.
package sbftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/sbfcov/sbfcov/pkg/osutil"
)

// Words encodes vals as little-endian 64-bit words.
func Words(vals ...uint64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return buf
}

// ELF returns an ELF64 image of the given size consisting only of a header with the entry address.
func ELF(entry uint64, size int) []byte {
	hdr := elf.Header64{
		Type:    uint16(elf.ET_DYN),
		Machine: uint16(elf.EM_BPF),
		Version: uint32(elf.EV_CURRENT),
		Entry:   entry,
		Ehsize:  64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		panic(err)
	}
	data := buf.Bytes()
	if size > len(data) {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data
}

// WriteFile writes data to dir/name creating parent directories and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	file := filepath.Join(dir, name)
	if err := osutil.MkdirAll(filepath.Dir(file)); err != nil {
		t.Fatal(err)
	}
	if err := osutil.WriteFile(file, data); err != nil {
		t.Fatal(err)
	}
	return file
}

// Program returns a compiled program image of size bytes with insns placed at their offsets.
func Program(size int, insns map[uint64]uint64) []byte {
	data := make([]byte, size)
	for off, insn := range insns {
		binary.LittleEndian.PutUint64(data[off:], insn)
	}
	return data
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sbf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	TraceExt = ".pcs"
	InsnsExt = ".insns"
)

// ReadTrace reads a program counter trace file.
// The file is a sequence of little-endian word indexes; they are converted to byte addresses.
// A truncated trailing word is ignored.
func ReadTrace(file string) ([]uint64, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	addrs, err := DecodeTrace(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", file, err)
	}
	return addrs, nil
}

func DecodeTrace(r io.Reader) ([]uint64, error) {
	var addrs []uint64
	br := bufio.NewReader(r)
	var buf [InsnSize]byte
	for {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		pc := binary.LittleEndian.Uint64(buf[:])
		addrs = append(addrs, pc<<3)
	}
	return addrs, nil
}

// InsnReader sequentially reads instruction words from an *.insns file.
type InsnReader struct {
	file string
	f    *os.File
	r    *bufio.Reader
}

func OpenInsns(file string) (*InsnReader, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	return &InsnReader{
		file: file,
		f:    f,
		r:    bufio.NewReader(f),
	}, nil
}

// Next returns the next instruction word.
// Running out of words is an error: the file must be index-aligned with the trace.
func (ir *InsnReader) Next() (Insn, error) {
	var buf [InsnSize]byte
	if _, err := io.ReadFull(ir.r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, fmt.Errorf("failed to read %v: %w", ir.file, err)
	}
	return Insn(binary.LittleEndian.Uint64(buf[:])), nil
}

func (ir *InsnReader) Close() error {
	return ir.f.Close()
}

// WithExt replaces extension of the file with ext (which includes the dot).
func WithExt(file, ext string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ext
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package debuginfo

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Size of elf.Header64.
const elfHeaderSize = 64

var (
	ErrMalformedBinary      = errors.New("malformed binary")
	ErrDebugInfoUnavailable = errors.New("debug info unavailable")
)

// EntryAddress returns the entry point address recorded in the ELF header of the binary.
// For SBF programs it is both the virtual address and the file offset of the first executed instruction.
func EntryAddress(file string) (uint64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("%w %v: %w", ErrMalformedBinary, file, err)
	}
	defer f.Close()
	entry, err := readEntry(f)
	if err != nil {
		return 0, fmt.Errorf("%w %v: %w", ErrMalformedBinary, file, err)
	}
	return entry, nil
}

func readEntry(r io.Reader) (uint64, error) {
	var data [elfHeaderSize]byte
	if _, err := io.ReadFull(r, data[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("file is shorter than ELF header")
		}
		return 0, err
	}
	if !bytes.HasPrefix(data[:], []byte(elf.ELFMAG)) {
		return 0, fmt.Errorf("bad ELF magic %q", data[:len(elf.ELFMAG)])
	}
	if class := elf.Class(data[elf.EI_CLASS]); class != elf.ELFCLASS64 {
		return 0, fmt.Errorf("unsupported ELF class %v", class)
	}
	var order binary.ByteOrder
	switch elf.Data(data[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("unknown ELF data encoding %v", data[elf.EI_DATA])
	}
	hdr := new(elf.Header64)
	if err := binary.Read(bytes.NewReader(data[:]), order, hdr); err != nil {
		return 0, err
	}
	return hdr.Entry, nil
}

// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sbf contains the value types and raw file formats produced by the patched SBF validator:
// program counter traces (*.pcs) and raw instruction words (*.insns).
package sbf

import (
	"fmt"
	"math/bits"
)

const (
	// InsnSize is the size of a single SBF instruction word.
	InsnSize = 8
	// CallOpcode is the opcode of the call instruction.
	// Calls are patched/relocated by the loader, so their bytes are not informative.
	CallOpcode = 0x85
)

// Insn is a raw 64-bit instruction word as read (little-endian) from a binary.
type Insn uint64

// String returns the instruction bytes in the order they appear in a hex dump of the binary.
func (insn Insn) String() string {
	return fmt.Sprintf("0x%016x", bits.ReverseBytes64(uint64(insn)))
}

func (insn Insn) Opcode() byte {
	return byte(insn)
}

func (insn Insn) IsCall() bool {
	return insn.Opcode() == CallOpcode
}

// Vaddr is a virtual address.
type Vaddr uint64

func (addr Vaddr) String() string {
	return fmt.Sprintf("0x%x", uint64(addr))
}

// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ext

import (
	"debug/elf"
	"fmt"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// segment is the subset of an ELF PT_LOAD program header verification
// needs; kept separate from debug/elf.Prog so the verification logic
// below can be exercised directly, without constructing a real ELF file.
type segment struct {
	vaddr, memsz, filesz uint64
}

// verifyLoadSegments requires every PT_LOAD segment land entirely inside
// [loadBase, loadBase+imageSize) (spec.md §6: "PT_LOAD segments inside
// the extension virtual range").
func verifyLoadSegments(segs []segment, loadBase, imageSize uint64) error {
	if len(segs) == 0 {
		return fmt.Errorf("%w: no PT_LOAD segments", mkerrors.ErrELFVerification)
	}
	end := loadBase + imageSize
	for _, s := range segs {
		if s.filesz > s.memsz {
			return fmt.Errorf("%w: segment at %#x has filesz > memsz", mkerrors.ErrELFVerification, s.vaddr)
		}
		if s.vaddr < loadBase || s.vaddr+s.memsz > end {
			return fmt.Errorf("%w: segment at %#x (size %#x) outside extension range [%#x, %#x)",
				mkerrors.ErrELFVerification, s.vaddr, s.memsz, loadBase, end)
		}
	}
	return nil
}

// rela is the subset of an Elf64_Rela entry verification needs.
type rela struct {
	offset, info, addend uint64
}

func (r rela) relocType() uint32 { return uint32(r.info) }

// verifyRelocations requires every relocation be R_X86_64_RELATIVE — a
// self-relocation the loader applies by adding its own load bias, which
// needs no symbol resolution. Any other type would require a runtime
// (dynamic-linker-style) fixup, which spec.md §6 forbids ("no
// relocations requiring runtime fixups").
func verifyRelocations(entries []rela) error {
	for _, r := range entries {
		if elf.R_X86_64(r.relocType()) != elf.R_X86_64_RELATIVE {
			return fmt.Errorf("%w: relocation at %#x has type %v, want R_X86_64_RELATIVE",
				mkerrors.ErrELFVerification, r.offset, elf.R_X86_64(r.relocType()))
		}
	}
	return nil
}

// zeroBSS zeros backing[offset:offset+size], verifying the range is
// in-bounds first (spec.md §6: "BSS zeroed").
func zeroBSS(backing []byte, offset, size uint64) error {
	if offset+size > uint64(len(backing)) {
		return fmt.Errorf("%w: bss range [%#x, %#x) exceeds backing size %#x",
			mkerrors.ErrELFVerification, offset, offset+size, len(backing))
	}
	for i := uint64(0); i < size; i++ {
		backing[offset+i] = 0
	}
	return nil
}

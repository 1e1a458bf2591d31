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
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func TestVerifyLoadSegmentsAccepted(t *testing.T) {
	segs := []segment{
		{vaddr: 0x1000, memsz: 0x1000, filesz: 0x800},
		{vaddr: 0x2000, memsz: 0x500, filesz: 0x500},
	}
	if err := verifyLoadSegments(segs, 0x1000, 0x2000); err != nil {
		t.Fatalf("verifyLoadSegments: %v", err)
	}
}

func TestVerifyLoadSegmentsOutOfRange(t *testing.T) {
	segs := []segment{{vaddr: 0x500, memsz: 0x1000, filesz: 0x1000}}
	if err := verifyLoadSegments(segs, 0x1000, 0x2000); !errors.Is(err, mkerrors.ErrELFVerification) {
		t.Fatalf("verifyLoadSegments(out of range) = %v, want ErrELFVerification", err)
	}
}

func TestVerifyLoadSegmentsFilesizeExceedsMemsz(t *testing.T) {
	segs := []segment{{vaddr: 0x1000, memsz: 0x100, filesz: 0x200}}
	if err := verifyLoadSegments(segs, 0x1000, 0x2000); !errors.Is(err, mkerrors.ErrELFVerification) {
		t.Fatalf("verifyLoadSegments(filesz > memsz) = %v, want ErrELFVerification", err)
	}
}

func TestVerifyLoadSegmentsEmpty(t *testing.T) {
	if err := verifyLoadSegments(nil, 0x1000, 0x2000); !errors.Is(err, mkerrors.ErrELFVerification) {
		t.Fatalf("verifyLoadSegments(nil) = %v, want ErrELFVerification", err)
	}
}

func TestVerifyRelocationsAcceptsRelativeOnly(t *testing.T) {
	// R_X86_64_RELATIVE == 8: info's low 32 bits carry the type.
	entries := []rela{{offset: 0x10, info: 8, addend: 0x100}, {offset: 0x20, info: 8, addend: 0x200}}
	if err := verifyRelocations(entries); err != nil {
		t.Fatalf("verifyRelocations: %v", err)
	}
}

func TestVerifyRelocationsRejectsSymbolBased(t *testing.T) {
	// A nonzero symbol index packed into the high bits plus a non-RELATIVE
	// type (R_X86_64_64 == 1) models a symbol-based relocation.
	entries := []rela{{offset: 0x10, info: (1 << 32) | 1, addend: 0}}
	if err := verifyRelocations(entries); err == nil {
		t.Fatalf("verifyRelocations(symbol-based) = nil, want error")
	}
}

func TestZeroBSS(t *testing.T) {
	backing := []byte{1, 2, 3, 4, 5, 6}
	if err := zeroBSS(backing, 2, 3); err != nil {
		t.Fatalf("zeroBSS: %v", err)
	}
	want := []byte{1, 2, 0, 0, 0, 6}
	for i := range want {
		if backing[i] != want[i] {
			t.Fatalf("backing = %v, want %v", backing, want)
		}
	}
}

func TestZeroBSSOutOfBounds(t *testing.T) {
	backing := make([]byte, 4)
	if err := zeroBSS(backing, 2, 10); !errors.Is(err, mkerrors.ErrELFVerification) {
		t.Fatalf("zeroBSS(out of bounds) = %v, want ErrELFVerification", err)
	}
}

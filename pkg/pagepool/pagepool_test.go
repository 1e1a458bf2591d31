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

package pagepool

import (
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func newTestPool(t *testing.T, frames int) *Pool {
	t.Helper()
	p, err := New(frames, 0x1000_0000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAllocateZeroedAndAligned(t *testing.T) {
	p := newTestPool(t, 4)
	addr, err := p.Allocate("test")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if addr%FrameSize != 0 {
		t.Errorf("addr %#x not frame-aligned", addr)
	}
	b, err := p.Bytes(addr)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, v)
		}
	}
}

func TestVirtToPhysRoundTrip(t *testing.T) {
	p := newTestPool(t, 8)
	addr, err := p.Allocate("round-trip")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	phys, err := p.VirtToPhys(addr)
	if err != nil {
		t.Fatalf("VirtToPhys: %v", err)
	}
	back, err := p.PhysToVirt(phys)
	if err != nil {
		t.Fatalf("PhysToVirt: %v", err)
	}
	if back != addr {
		t.Errorf("PhysToVirt(VirtToPhys(addr)) = %#x, want %#x", back, addr)
	}
}

func TestExhaustion(t *testing.T) {
	p := newTestPool(t, 2)
	if _, err := p.Allocate("a"); err != nil {
		t.Fatalf("Allocate 1: %v", err)
	}
	if _, err := p.Allocate("a"); err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}
	if _, err := p.Allocate("a"); !errors.Is(err, mkerrors.ErrPoolExhausted) {
		t.Fatalf("Allocate 3 = %v, want ErrPoolExhausted", err)
	}
}

func TestDeallocateWrongTag(t *testing.T) {
	p := newTestPool(t, 2)
	addr, err := p.Allocate("vm_pool")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Deallocate(addr, "vp_pool"); !errors.Is(err, mkerrors.ErrWrongTag) {
		t.Fatalf("Deallocate wrong tag = %v, want ErrWrongTag", err)
	}
	// Correct tag still works afterward.
	if err := p.Deallocate(addr, "vm_pool"); err != nil {
		t.Fatalf("Deallocate correct tag: %v", err)
	}
}

func TestAccountingRoundTrip(t *testing.T) {
	p := newTestPool(t, 4)
	a1, _ := p.Allocate("vs_pool")
	a2, _ := p.Allocate("vs_pool")
	_ = p.Deallocate(a1, "vs_pool")

	rows := p.Dump()
	var found TagUsage
	for _, r := range rows {
		if r.Tag == "vs_pool" {
			found = r
		}
	}
	if found.Allocated != 2*FrameSize {
		t.Errorf("Allocated = %d, want %d", found.Allocated, 2*FrameSize)
	}
	if found.Freed != FrameSize {
		t.Errorf("Freed = %d, want %d", found.Freed, FrameSize)
	}
	if found.Remaining != FrameSize {
		t.Errorf("Remaining = %d, want %d", found.Remaining, FrameSize)
	}
	_ = a2
}

func TestFreeListReuse(t *testing.T) {
	p := newTestPool(t, 1)
	addr, err := p.Allocate("x")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Deallocate(addr, "x"); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	addr2, err := p.Allocate("y")
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if addr2 != addr {
		t.Errorf("expected frame reuse, got different address %#x != %#x", addr2, addr)
	}
}

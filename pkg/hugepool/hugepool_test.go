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

package hugepool

import (
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func newTestPool(t *testing.T, frames int) *Pool {
	t.Helper()
	p, err := New(frames, 0x2000_0000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAllocateContiguous(t *testing.T) {
	p := newTestPool(t, 16)
	addr, err := p.Allocate(4, "vs_backing")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b, err := p.Bytes(addr)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(b) != 4*FrameSize {
		t.Errorf("len(Bytes) = %d, want %d", len(b), 4*FrameSize)
	}
}

func TestReleaseUndoesMap(t *testing.T) {
	p := newTestPool(t, 16)
	if got := p.LargestFreeRun(); got != 16 {
		t.Fatalf("initial LargestFreeRun = %d, want 16", got)
	}
	addr, err := p.Allocate(6, "tag")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Deallocate(addr, "tag"); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	if got := p.LargestFreeRun(); got != 16 {
		t.Errorf("post-release LargestFreeRun = %d, want 16 (pre-map state)", got)
	}
}

func TestMergeAcrossHoleClosure(t *testing.T) {
	p := newTestPool(t, 12)
	a, _ := p.Allocate(4, "a")
	b, _ := p.Allocate(4, "b")
	c, _ := p.Allocate(4, "c")

	// Fragment the pool, then free everything out of order; the free-run
	// index must coalesce back to one run spanning the whole pool.
	if err := p.Deallocate(b, "b"); err != nil {
		t.Fatalf("Deallocate b: %v", err)
	}
	if err := p.Deallocate(a, "a"); err != nil {
		t.Fatalf("Deallocate a: %v", err)
	}
	if err := p.Deallocate(c, "c"); err != nil {
		t.Fatalf("Deallocate c: %v", err)
	}
	if got := p.LargestFreeRun(); got != 12 {
		t.Errorf("LargestFreeRun after freeing all = %d, want 12", got)
	}
}

func TestExhaustionNoFitRun(t *testing.T) {
	p := newTestPool(t, 4)
	if _, err := p.Allocate(2, "a"); err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}
	if _, err := p.Allocate(3, "b"); !errors.Is(err, mkerrors.ErrPoolExhausted) {
		t.Fatalf("Allocate 3 (only 2 frames free) = %v, want ErrPoolExhausted", err)
	}
}

func TestDeallocateWrongTag(t *testing.T) {
	p := newTestPool(t, 8)
	addr, _ := p.Allocate(2, "ext_image")
	if err := p.Deallocate(addr, "vs_pool"); !errors.Is(err, mkerrors.ErrWrongTag) {
		t.Fatalf("Deallocate wrong tag = %v, want ErrWrongTag", err)
	}
}

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

package vm

import (
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/pagetable"
)

func newTestPoolWithPages(t *testing.T) (*Pool, *pagepool.Pool) {
	t.Helper()
	pages, err := pagepool.New(256, 0x4000_0000)
	if err != nil {
		t.Fatalf("pagepool.New: %v", err)
	}
	t.Cleanup(func() { _ = pages.Close() })
	p := NewPool(4)
	p.AttachPagePool(pages)
	return p, pages
}

func TestMapDirectWithoutPagePoolFails(t *testing.T) {
	p := NewPool(4)
	if err := p.MapDirect(ident.RootVMID, 0x1000, 0x2000, pagetable.Attr{R: true}, pagetable.WriteBack); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("MapDirect (no page pool) = %v, want ErrUnsupported", err)
	}
}

func TestMapDirectThenUnmapDirect(t *testing.T) {
	p, _ := newTestPoolWithPages(t)
	const virt = uint64(0x10_0000)
	const phys = uintptr(0x20_0000)
	if err := p.MapDirect(ident.RootVMID, virt, phys, pagetable.Attr{R: true, W: true}, pagetable.WriteBack); err != nil {
		t.Fatalf("MapDirect: %v", err)
	}
	if err := p.UnmapDirect(ident.RootVMID, virt); err != nil {
		t.Fatalf("UnmapDirect: %v", err)
	}
	// Unmapping again is idempotent (spec.md §7).
	if err := p.UnmapDirect(ident.RootVMID, virt); err != nil {
		t.Fatalf("UnmapDirect (second): %v", err)
	}
}

func TestUnmapDirectOnNeverMappedVMSucceeds(t *testing.T) {
	p, _ := newTestPoolWithPages(t)
	if err := p.UnmapDirect(ident.RootVMID, 0x5000); err != nil {
		t.Fatalf("UnmapDirect (no rpt yet) = %v, want nil", err)
	}
}

func TestUnmapDirectBroadcast(t *testing.T) {
	p, _ := newTestPoolWithPages(t)
	const virt = uint64(0x30_0000)
	if err := p.MapDirect(ident.RootVMID, virt, 0x40_0000, pagetable.Attr{R: true}, pagetable.WriteBack); err != nil {
		t.Fatalf("MapDirect: %v", err)
	}
	if err := p.UnmapDirectBroadcast(ident.RootVMID, virt); err != nil {
		t.Fatalf("UnmapDirectBroadcast: %v", err)
	}
}

func TestTLBFlushUnallocatedVMFails(t *testing.T) {
	p, _ := newTestPoolWithPages(t)
	addr := uint64(0x1000)
	if err := p.TLBFlush(ident.ID(99), &addr); !errors.Is(err, mkerrors.ErrNotOwned) {
		t.Fatalf("TLBFlush (unallocated) = %v, want ErrNotOwned", err)
	}
}

func TestTLBFlushWholeAddressSpace(t *testing.T) {
	p, _ := newTestPoolWithPages(t)
	if err := p.TLBFlush(ident.RootVMID, nil); err != nil {
		t.Fatalf("TLBFlush (nil addr) = %v, want nil", err)
	}
}

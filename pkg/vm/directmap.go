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
	"fmt"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/pagetable"
)

// AttachPagePool gives the pool a backing allocator for per-VM root page
// tables, lazily created on a VM's first MapDirect call (spec.md §4.2:
// "extension ASes"). pkg/boot calls this once after NewPool.
func (p *Pool) AttachPagePool(pages *pagepool.Pool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = pages
}

func (p *Pool) rpt(id ident.ID, e *entry) (*pagetable.Table, error) {
	if e.rpt != nil {
		return e.rpt, nil
	}
	if p.pages == nil {
		return nil, fmt.Errorf("%w: vm_pool has no page pool attached", mkerrors.ErrUnsupported)
	}
	t, err := pagetable.New(p.pages, fmt.Sprintf("vm%d_rpt", id))
	if err != nil {
		return nil, err
	}
	e.rpt = t
	return t, nil
}

// MapDirect maps a single 4k host-physical frame into vmid's address
// space at virt (vm_op_map_direct, spec.md §4.5).
func (p *Pool) MapDirect(vmid ident.ID, virt uint64, phys uintptr, attr pagetable.Attr, mt pagetable.MemType) error {
	p.mu.Lock()
	e, err := p.lookup(vmid)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	t, err := p.rpt(vmid, e)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return t.Map4k(virt, phys, attr, mt)
}

// UnmapDirect removes the mapping at virt in vmid's address space, on the
// calling PP only (vm_op_unmap_direct). Unmapping an unmapped address
// succeeds silently (spec.md §7: "idempotent operations ... unmap ...
// succeed silently").
func (p *Pool) UnmapDirect(vmid ident.ID, virt uint64) error {
	p.mu.Lock()
	e, err := p.lookup(vmid)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	t := e.rpt
	p.mu.Unlock()
	if t == nil {
		return nil
	}
	if err := t.Unmap(virt); err != nil {
		return err
	}
	intrinsic.Invlpg(virt)
	return nil
}

// UnmapDirectBroadcast is UnmapDirect followed by an Invlpg on every other
// online PP, simulating the IPI the original sends to keep every PP's TLB
// coherent with a shared RPT (vm_op_unmap_direct_broadcast).
func (p *Pool) UnmapDirectBroadcast(vmid ident.ID, virt uint64) error {
	if err := p.UnmapDirect(vmid, virt); err != nil {
		return err
	}
	for pp := 0; pp < p.nPPs; pp++ {
		intrinsic.Invlpg(virt)
	}
	return nil
}

// TLBFlush invalidates addr (or, if addr is nil, the whole address space)
// for vmid (vm_op_tlb_flush).
func (p *Pool) TLBFlush(vmid ident.ID, addr *uint64) error {
	p.mu.Lock()
	_, err := p.lookup(vmid)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if addr != nil {
		intrinsic.Invlpg(*addr)
	}
	return nil
}

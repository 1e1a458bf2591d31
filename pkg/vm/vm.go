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

// Package vm implements vm_t / vm_pool_t (spec.md §3): an address-space
// identity that may be active on any number of PPs concurrently, but at
// most once per PP. The root VM (ident.RootVMID) is allocated once at
// boot and can never be destroyed.
package vm

import (
	"fmt"
	"sync"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/pagetable"
)

type entry struct {
	allocated bool
	active    []bool // indexed by pp

	rpt *pagetable.Table // lazily created on first MapDirect, see directmap.go
}

// Pool is vm_pool_t. Every mutating operation, and every lookup, takes
// the single pool lock (spec.md §5: "all mutating operations are
// serialized by a single spinlock per pool; lookups use the same lock").
type Pool struct {
	mu    sync.Mutex
	nPPs  int
	slots [ident.MaxVMs]*entry
	free  []ident.ID
	next  ident.ID

	pages *pagepool.Pool // attached via AttachPagePool, used by directmap.go
}

// NewPool creates a vm_pool_t with the root VM already allocated, as
// spec.md §3 requires ("ID 0 is ... the root VM (ROOT_VMID)").
func NewPool(nPPs int) *Pool {
	p := &Pool{nPPs: nPPs, next: 1}
	p.slots[ident.RootVMID] = &entry{allocated: true, active: make([]bool, nPPs)}
	return p
}

func (p *Pool) lookup(id ident.ID) (*entry, error) {
	if !ident.Valid(id, ident.MaxVMs) {
		return nil, mkerrors.ErrNotOwned
	}
	e := p.slots[id]
	if e == nil || !e.allocated {
		return nil, mkerrors.ErrNotOwned
	}
	return e, nil
}

func (p *Pool) ppValid(pp ident.ID) bool {
	return ident.Valid(pp, p.nPPs)
}

// Allocate transitions a free slot deallocated -> allocated and returns
// its id.
func (p *Pool) Allocate() (ident.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id ident.ID
	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if int(p.next) >= ident.MaxVMs {
			return ident.Invalid, mkerrors.ErrPoolExhausted
		}
		id = p.next
		p.next++
	}
	p.slots[id] = &entry{allocated: true, active: make([]bool, p.nPPs)}
	return id, nil
}

// Destroy deallocates id, which must not be the root VM and must not be
// active on any PP (spec.md §3 lifecycle rule 3; supplemented feature:
// the root VM is never destroyable, independent of its active state).
func (p *Pool) Destroy(id ident.ID) error {
	if id == ident.RootVMID {
		return mkerrors.ErrRootVM
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return err
	}
	for pp, active := range e.active {
		if active {
			return fmt.Errorf("%w: vm %d active on pp %d", mkerrors.ErrActive, id, pp)
		}
	}
	p.slots[id] = nil
	p.free = append(p.free, id)
	return nil
}

// SetActive marks id active on pp. Idempotent if already active there
// (spec.md §3 lifecycle rule 2). Fails if id is active on a different PP
// simultaneously is fine (VMs may be active on many PPs at once) but
// each PP may host at most one active VM id at a time; enforcing that
// per-PP exclusivity is pkg/dispatch's job via the TLS active triple, not
// this pool's, since vm_pool has no notion of "which VM is active here"
// beyond its own bit.
func (p *Pool) SetActive(id, pp ident.ID) error {
	if !p.ppValid(pp) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return err
	}
	e.active[pp] = true
	return nil
}

// SetInactive marks id inactive on pp. Idempotent if already inactive.
func (p *Pool) SetInactive(id, pp ident.ID) error {
	if !p.ppValid(pp) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return err
	}
	e.active[pp] = false
	return nil
}

// IsActive reports whether id is active on pp.
func (p *Pool) IsActive(id, pp ident.ID) (bool, error) {
	if !p.ppValid(pp) {
		return false, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return e.active[pp], nil
}

// Info is one row of Dump, for debug_op_dump_vm.
type Info struct {
	ID            ident.ID
	ActiveOnAnyPP bool
}

// Dump returns every allocated VM's id and whether it is active anywhere.
func (p *Pool) Dump() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Info
	for id := ident.ID(0); int(id) < len(p.slots); id++ {
		e := p.slots[id]
		if e == nil || !e.allocated {
			continue
		}
		active := false
		for _, a := range e.active {
			if a {
				active = true
				break
			}
		}
		out = append(out, Info{ID: id, ActiveOnAnyPP: active})
	}
	return out
}

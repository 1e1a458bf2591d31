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

package dispatch

import (
	"fmt"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/mklog"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// nmiExitReason is the Intel-only "reason=0" VM-exit the NMI-window
// mechanism hinges on (spec.md §4.4).
const nmiExitReason = 0

// HandleVMExit implements the dispatcher sequence of spec.md §4.4: read
// the exit reason from the active VS, log it, and invoke the
// extension's registered vmexit callback, which must ask for a run
// variant or a promote. Grounded on
// original_source/bfvmm/src/hve/arch/intel_x64/exit_handler/exit_handler.cpp's
// read-reason/log/dispatch/require-resume sequencing.
func (d *Dispatcher) HandleVMExit(pp ident.ID) error {
	vsid, err := d.vsPool.ActiveOnPP(pp)
	if err != nil {
		return err
	}
	if vsid == ident.Invalid {
		return d.HandleFault(pp, 0, 0, fmt.Errorf("%w: vmexit on pp %d with no active vs", mkerrors.ErrProtocolViolation, pp))
	}

	exitReason, err := d.vsPool.Read(vsid, vsregs.RegExitReason)
	if err != nil {
		return err
	}

	info, err := d.vsPool.Info1(vsid)
	if err == nil {
		_ = d.exitlog.Record(pp, vmexitlog.Entry{VMID: info.AssignedVM, VPID: info.AssignedVP, VSID: vsid, ExitReason: exitReason})
	}

	if exitReason == nmiExitReason && d.vsPool.Backend() == vsregs.BackendIntel {
		if err := d.vsPool.SetNMIWindowPending(vsid, true); err != nil {
			return err
		}
		_, err := d.vsPool.Run(pp, vsid)
		return err
	}

	cbs := d.callbacks()
	if cbs.VMExit == nil {
		return d.HandleFault(pp, 0, 0, fmt.Errorf("%w: vmexit fired before vmexit callback registered", mkerrors.ErrProtocolViolation))
	}

	action := cbs.VMExit(pp, vsid, exitReason)
	switch action {
	case ActionRun:
		_, err := d.vsPool.Run(pp, vsid)
		return err
	case ActionRunCurrent:
		_, err := d.vsPool.RunCurrent(pp)
		return err
	case ActionPromote:
		return d.vsPool.Promote(pp, vsid)
	default:
		if err == nil {
			mklog.Active(pp, info.AssignedVM, info.AssignedVP, vsid).Error("vmexit callback returned without run or promote")
		} else {
			mklog.PP(pp).WithError(err).Error("vmexit callback returned without run or promote; vm/vp assignment unknown")
		}
		return d.HandleFault(pp, 0, 0, fmt.Errorf("%w: vmexit callback returned %v, want run or promote", mkerrors.ErrProtocolViolation, action))
	}
}

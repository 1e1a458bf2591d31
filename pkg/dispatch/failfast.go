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
)

// HandleFault is the exception/fault discipline of spec.md §5 and §7
// category 4: an exception inside the microkernel transfers control to
// the ESR, which calls the extension's registered fail callback with
// (vector, errorCode). cause, when non-nil, is the protocol violation
// that routed here instead of an actual architectural exception (a
// vmexit with no registered callback, or a callback that returned
// without run/promote) — it is logged and written to the debug ring but
// does not change the fail-callback contract.
//
// Grounded on original_source/kernel/src/arch/intel_x64/vmexit/nmi.hpp's
// and the ESR dispatch's ultimate fallback: recover via run, leave via
// promote or exit, or halt the PP if fail itself misbehaves.
func (d *Dispatcher) HandleFault(pp ident.ID, vector, errorCode uint64, cause error) error {
	msg := fmt.Sprintf("fault pp=%d vector=%#x error=%#x", pp, vector, errorCode)
	if cause != nil {
		msg += fmt.Sprintf(" cause=%v", cause)
	}
	_, _ = d.debug.WriteString(pp, msg+"\n")
	mklog.PP(pp).WithError(cause).Error(msg)

	cbs := d.callbacks()
	if cbs.Fail == nil {
		return d.halt(pp, "no fail callback registered")
	}

	action := cbs.Fail(pp, vector, errorCode)
	switch action {
	case ActionRun:
		vsid, err := d.vsPool.ActiveOnPP(pp)
		if err != nil {
			return err
		}
		if vsid == ident.Invalid {
			return d.halt(pp, "fail callback requested run with no active vs")
		}
		_, err = d.vsPool.Run(pp, vsid)
		return err
	case ActionPromote:
		vsid, err := d.vsPool.ActiveOnPP(pp)
		if err != nil {
			return err
		}
		return d.vsPool.Promote(pp, vsid)
	case ActionExit:
		return nil
	default:
		return d.halt(pp, "fail callback returned without run, promote or exit")
	}
}

func (d *Dispatcher) halt(pp ident.ID, reason string) error {
	_, _ = d.debug.WriteString(pp, fmt.Sprintf("pp %d halted: %s\n", pp, reason))
	mklog.PP(pp).Error("pp halted: " + reason)
	return fmt.Errorf("%w: %s", mkerrors.ErrPPHalted, reason)
}

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

	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// ops is the tagged-variant abstraction Design Note "virtual dispatch
// across architectures" calls for: Intel (VMX/VMCS) and AMD (SVM/VMCB)
// each implement it, and vs_t/vs_pool_t pick one at construction time.
// Nothing downcasts; the interface is the entire seam.
type ops interface {
	// revisionID returns the architecturally mandated constant that must
	// be written to a fresh backing page's revision-identifier field
	// before the page can be entered (VMCS) or loaded (VMCB).
	revisionID() uint32
	readField(page []byte, r vsregs.Reg) (uint64, error)
	writeField(page []byte, r vsregs.Reg, val uint64) error
	// vmExecutor performs the mode transition this backend's vs_op_run
	// needs: VMLAUNCH/VMRESUME on Intel, VMRUN on AMD.
	vmExecutor() intrinsic.Executor
	// nmiWindowSupported reports whether setting an NMI-window exiting
	// control is meaningful on this backend (Intel only; spec.md §4.4:
	// "AMD masks NMIs so this mechanism is unused there").
	nmiWindowSupported() bool
}

type intelOps struct{}

func (intelOps) revisionID() uint32 { return 1 }

func (intelOps) readField(page []byte, r vsregs.Reg) (uint64, error) {
	offset, width, ok := vsregs.Encoding(r, vsregs.BackendIntel)
	if !ok {
		return 0, fmt.Errorf("%w: %s on intel", mkerrors.ErrUnsupported, r)
	}
	return intrinsic.Vmread(page, offset, width)
}

func (intelOps) writeField(page []byte, r vsregs.Reg, val uint64) error {
	offset, width, ok := vsregs.Encoding(r, vsregs.BackendIntel)
	if !ok {
		return fmt.Errorf("%w: %s on intel", mkerrors.ErrUnsupported, r)
	}
	return intrinsic.Vmwrite(page, offset, width, val)
}

func (intelOps) vmExecutor() intrinsic.Executor {
	return func(page []byte, backend intrinsic.Backend) (uint64, error) {
		return intrinsic.Vmread(page, exitReasonOffsetIntel, 64)
	}
}

func (intelOps) nmiWindowSupported() bool { return true }

type amdOps struct{}

func (amdOps) revisionID() uint32 { return 0 } // VMCB has no revision field; ASID plays a similar role

func (amdOps) readField(page []byte, r vsregs.Reg) (uint64, error) {
	offset, width, ok := vsregs.Encoding(r, vsregs.BackendAMD)
	if !ok {
		return 0, fmt.Errorf("%w: %s on amd", mkerrors.ErrUnsupported, r)
	}
	return intrinsic.Vmread(page, offset, width)
}

func (amdOps) writeField(page []byte, r vsregs.Reg, val uint64) error {
	offset, width, ok := vsregs.Encoding(r, vsregs.BackendAMD)
	if !ok {
		return fmt.Errorf("%w: %s on amd", mkerrors.ErrUnsupported, r)
	}
	return intrinsic.Vmwrite(page, offset, width, val)
}

func (amdOps) vmExecutor() intrinsic.Executor {
	return func(page []byte, backend intrinsic.Backend) (uint64, error) {
		return intrinsic.Vmread(page, exitReasonOffsetAMD, 64)
	}
}

func (amdOps) nmiWindowSupported() bool { return false }

// exitReasonOffsetIntel/AMD cache the exit_reason field's backend-specific
// offset so the executors above don't need a vsregs lookup on every exit;
// computed once in init from the same table pkg/vsregs generates.
var exitReasonOffsetIntel, exitReasonOffsetAMD uint64

func init() {
	if off, _, ok := vsregs.Encoding(vsregs.RegExitReason, vsregs.BackendIntel); ok {
		exitReasonOffsetIntel = off
	}
	if off, _, ok := vsregs.Encoding(vsregs.RegExitReason, vsregs.BackendAMD); ok {
		exitReasonOffsetAMD = off
	}
}

func opsFor(backend vsregs.Backend) ops {
	if backend == vsregs.BackendAMD {
		return amdOps{}
	}
	return intelOps{}
}

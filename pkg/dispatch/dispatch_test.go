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
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/debugring"
	"github.com/bareflank/microkernel/pkg/ext"
	"github.com/bareflank/microkernel/pkg/handleop"
	"github.com/bareflank/microkernel/pkg/hugepool"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/syscallabi"
	"github.com/bareflank/microkernel/pkg/tls"
	"github.com/bareflank/microkernel/pkg/vm"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vp"
	"github.com/bareflank/microkernel/pkg/vs"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

const testNPPs = 2

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	pages, err := pagepool.New(256, 0x5000_0000)
	if err != nil {
		t.Fatalf("pagepool.New: %v", err)
	}
	t.Cleanup(func() { _ = pages.Close() })

	huge, err := hugepool.New(64, 0x6000_0000)
	if err != nil {
		t.Fatalf("hugepool.New: %v", err)
	}
	t.Cleanup(func() { _ = huge.Close() })

	cpus := make([]*intrinsic.CPU, testNPPs)
	for i := range cpus {
		cpus[i] = intrinsic.New(intrinsic.BackendIntel)
	}

	tlsPool, err := tls.NewPool(pages, testNPPs)
	if err != nil {
		t.Fatalf("tls.NewPool: %v", err)
	}
	t.Cleanup(func() { _ = tlsPool.Close() })

	debugPool, err := debugring.NewPool(pages, testNPPs, 1e6, 1<<20)
	if err != nil {
		t.Fatalf("debugring.NewPool: %v", err)
	}
	t.Cleanup(func() { _ = debugPool.Close() })

	return New(Config{
		NPPs:    testNPPs,
		CPUs:    cpus,
		VM:      vm.NewPool(testNPPs),
		VP:      vp.NewPool(testNPPs),
		VS:      vs.NewPool(pages, cpus, vsregs.BackendIntel),
		TLS:     tlsPool,
		Handles: handleop.NewPool(),
		Ext:     ext.NewPool(),
		Debug:   debugPool,
		ExitLog: vmexitlog.NewPool(testNPPs, 16),
		Pages:   pages,
		Huge:    huge,
		RootRegs: map[vsregs.Reg]uint64{
			vsregs.RegRip: 0x1000,
		},
	})
}

func openHandle(t *testing.T, d *Dispatcher) uint64 {
	t.Helper()
	status, out := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyHandle, handleOpOpenHandle), Args{0: handleop.SupportedVersions})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("open_handle = %v, want success", status)
	}
	return out[0]
}

func TestSyscallRejectsUnknownHandle(t *testing.T) {
	d := newTestDispatcher(t)
	status, _ := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVM, vmOpCreateVM), Args{0: 99})
	if status != syscallabi.StatusFailureInvalidHandle {
		t.Fatalf("Syscall (no handle) = %v, want StatusFailureInvalidHandle", status)
	}
}

func TestSyscallRejectsBadSignature(t *testing.T) {
	d := newTestDispatcher(t)
	status, _ := d.Syscall(0, syscallabi.Opcode(0), Args{})
	if _, ok := syscallabi.IsInvalidInputReg(status); !ok {
		t.Fatalf("Syscall (bad signature) = %v, want InvalidInputReg", status)
	}
}

func TestOpenHandleThenCreateVM(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)

	status, out := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVM, vmOpCreateVM), Args{0: h})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("create_vm = %v, want success", status)
	}
	if out[0] == uint64(ident.RootVMID) {
		t.Fatalf("create_vm returned the root VM id")
	}
}

func TestCreateVPThenVS(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)

	status, out := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVP, vpOpCreateVP), Args{0: h, 1: uint64(ident.RootVMID)})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("create_vp = %v, want success", status)
	}
	vpid := out[0]

	status, out = d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVS, vsOpCreateVS), Args{0: h, 1: vpid, 2: 0})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("create_vs = %v, want success", status)
	}
	vsid := ident.ID(out[0])

	status, _ = d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVS, vsOpInitAsRoot), Args{0: h, 1: uint64(vsid)})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("init_as_root = %v, want success", status)
	}

	status, out = d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVS, vsOpRead), Args{0: h, 1: uint64(vsid), 2: uint64(vsregs.RegRip)})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("read rip = %v, want success", status)
	}
	if out[0] != 0x1000 {
		t.Fatalf("rip = %#x, want 0x1000", out[0])
	}
}

func TestCreateVPUnknownVMFails(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)
	status, _ := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyVP, vpOpCreateVP), Args{0: h, 1: 0xBEEF})
	if _, ok := syscallabi.IsInvalidInputReg(status); !ok {
		t.Fatalf("create_vp (bad vmid) = %v, want InvalidInputReg", status)
	}
}

func TestIntrinsicRdmsrWrmsrRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)

	status, _ := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyIntrinsic, intrinsicOpWrmsr), Args{0: h, 1: uint64(intrinsic.MSRIA32PAT), 2: 0x123})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("wrmsr = %v, want success", status)
	}
	status, out := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyIntrinsic, intrinsicOpRdmsr), Args{0: h, 1: uint64(intrinsic.MSRIA32PAT)})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("rdmsr = %v, want success", status)
	}
	if out[0] != 0x123 {
		t.Fatalf("rdmsr = %#x, want 0x123", out[0])
	}
}

func TestMemAllocPageAndHuge(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)

	status, _ := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyMem, memOpAllocPage), Args{0: h})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("alloc_page = %v, want success", status)
	}
	status, _ = d.Syscall(0, syscallabi.Pack(syscallabi.FamilyMem, memOpAllocHuge), Args{0: h, 1: 4})
	if status != syscallabi.StatusSuccess {
		t.Fatalf("alloc_huge = %v, want success", status)
	}
}

func TestHandleVMExitWithoutCallbackHalts(t *testing.T) {
	d := newTestDispatcher(t)
	vsid, err := d.vsPool.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := d.vsPool.InitAsRoot(vsid, map[vsregs.Reg]uint64{vsregs.RegRip: 0x2000}); err != nil {
		t.Fatalf("InitAsRoot: %v", err)
	}
	// Run once so the VS becomes active on pp 0 and HandleVMExit has
	// something to read the exit reason from. The synthetic backing
	// page's exit_reason field is non-zero after this to avoid the
	// Intel NMI-window branch, which is exercised separately.
	if err := d.vsPool.Write(vsid, vsregs.RegExitReason, 7); err != nil {
		t.Fatalf("Write exit_reason: %v", err)
	}
	if _, err := d.vsPool.Run(0, vsid); err != nil {
		t.Fatalf("Run: %v", err)
	}

	err = d.HandleVMExit(0)
	if !errors.Is(err, mkerrors.ErrPPHalted) {
		t.Fatalf("HandleVMExit (no callback) = %v, want ErrPPHalted", err)
	}
}

func TestHandleVMExitPromoteAction(t *testing.T) {
	d := newTestDispatcher(t)
	vsid, err := d.vsPool.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := d.vsPool.InitAsRoot(vsid, nil); err != nil {
		t.Fatalf("InitAsRoot: %v", err)
	}
	if err := d.vsPool.Write(vsid, vsregs.RegExitReason, 9); err != nil {
		t.Fatalf("Write exit_reason: %v", err)
	}
	if _, err := d.vsPool.Run(0, vsid); err != nil {
		t.Fatalf("Run: %v", err)
	}

	d.SetCallbacks(Callbacks{
		VMExit: func(pp, id ident.ID, reason uint64) Action {
			if reason != 9 {
				t.Errorf("vmexit callback reason = %d, want 9", reason)
			}
			return ActionPromote
		},
	})

	if err := d.HandleVMExit(0); err != nil {
		t.Fatalf("HandleVMExit: %v", err)
	}
}

func TestHandleVMExitNMIWindowResumesOnIntel(t *testing.T) {
	d := newTestDispatcher(t)
	vsid, err := d.vsPool.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := d.vsPool.InitAsRoot(vsid, nil); err != nil {
		t.Fatalf("InitAsRoot: %v", err)
	}
	// A freshly created VS's backing page is zeroed, so exit_reason is
	// already 0 (NMI) without any extra write.
	if _, err := d.vsPool.Run(0, vsid); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := d.HandleVMExit(0); err != nil {
		t.Fatalf("HandleVMExit (nmi window): %v", err)
	}
	pending, err := d.vsPool.NMIWindowPending(vsid)
	if err != nil {
		t.Fatalf("NMIWindowPending: %v", err)
	}
	if !pending {
		t.Fatalf("NMIWindowPending = false, want true after reason=0 exit")
	}
}

func TestHandleVMExitCallbackReturningNoneFastFails(t *testing.T) {
	d := newTestDispatcher(t)
	vsid, err := d.vsPool.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := d.vsPool.InitAsRoot(vsid, nil); err != nil {
		t.Fatalf("InitAsRoot: %v", err)
	}
	if err := d.vsPool.Write(vsid, vsregs.RegExitReason, 3); err != nil {
		t.Fatalf("Write exit_reason: %v", err)
	}
	if _, err := d.vsPool.Run(0, vsid); err != nil {
		t.Fatalf("Run: %v", err)
	}
	d.SetCallbacks(Callbacks{VMExit: func(ident.ID, ident.ID, uint64) Action { return ActionNone }})

	err = d.HandleVMExit(0)
	if !errors.Is(err, mkerrors.ErrPPHalted) {
		t.Fatalf("HandleVMExit (callback returns ActionNone) = %v, want ErrPPHalted", err)
	}
}

func TestHandleFaultRecoversViaRun(t *testing.T) {
	d := newTestDispatcher(t)
	vsid, err := d.vsPool.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := d.vsPool.InitAsRoot(vsid, nil); err != nil {
		t.Fatalf("InitAsRoot: %v", err)
	}
	if _, err := d.vsPool.Run(0, vsid); err != nil {
		t.Fatalf("Run: %v", err)
	}
	d.SetCallbacks(Callbacks{Fail: func(pp ident.ID, vector, errorCode uint64) Action { return ActionRun }})

	if err := d.HandleFault(0, 0xE, 0, errors.New("page fault")); err != nil {
		t.Fatalf("HandleFault: %v", err)
	}
}

func TestHandleFaultWithoutCallbackHalts(t *testing.T) {
	d := newTestDispatcher(t)
	err := d.HandleFault(0, 0x6, 0, errors.New("invalid opcode"))
	if !errors.Is(err, mkerrors.ErrPPHalted) {
		t.Fatalf("HandleFault (no callback) = %v, want ErrPPHalted", err)
	}
}

func TestControlOpExitWaitAgainSucceed(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)
	for _, index := range []uint16{controlOpExit, controlOpWait, controlOpAgain} {
		status, out := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyControl, index), Args{0: h})
		if status != syscallabi.StatusSuccess {
			t.Errorf("control_op(%d) = %v, want StatusSuccess", index, status)
		}
		if out != (Out{}) {
			t.Errorf("control_op(%d) out = %+v, want zero value", index, out)
		}
	}
}

func TestControlOpUnknownIndexUnsupported(t *testing.T) {
	d := newTestDispatcher(t)
	h := openHandle(t, d)
	status, _ := d.Syscall(0, syscallabi.Pack(syscallabi.FamilyControl, controlOpAgain+1), Args{0: h})
	if status != syscallabi.StatusFailureUnsupported {
		t.Fatalf("control_op(unknown) = %v, want StatusFailureUnsupported", status)
	}
}

func TestDumpMethodsReflectPoolState(t *testing.T) {
	d := newTestDispatcher(t)
	if vms := d.DumpVM(); len(vms) != 1 {
		t.Fatalf("DumpVM = %d entries, want 1 (root vm)", len(vms))
	}
	if _, err := d.DumpExt(); !errors.Is(err, mkerrors.ErrNotOwned) {
		t.Fatalf("DumpExt (no extension loaded) = %v, want ErrNotOwned", err)
	}
}

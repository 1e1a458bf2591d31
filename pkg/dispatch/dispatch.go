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

// Package dispatch wires every pool together into the two things a
// physical processor actually enters the microkernel for: a syscall
// (spec.md §4.5) and a VM-exit (spec.md §4.4). It also carries the
// fast-fail path (spec.md §7, category 4 and 5).
//
// There is no real guest code to vmcall into, so the extension side of
// the ABI is modeled as Go callbacks rather than raw instruction
// pointers: the CALLBACK family records addresses on ext.Image exactly
// as the original does, and separately a Callbacks value (set by
// pkg/boot once the callbacks are known, or directly by a test) supplies
// the Go functions invoked at those addresses. This keeps the family of
// "decoupling via function parameter" already used by pkg/vs.SetActive
// and pkg/pagetable.Table.Activate: the dispatcher never assumes how a
// callback is actually reached.
package dispatch

import (
	"sync"

	"github.com/bareflank/microkernel/pkg/debugring"
	"github.com/bareflank/microkernel/pkg/ext"
	"github.com/bareflank/microkernel/pkg/handleop"
	"github.com/bareflank/microkernel/pkg/hugepool"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/syscallabi"
	"github.com/bareflank/microkernel/pkg/tls"
	"github.com/bareflank/microkernel/pkg/vm"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vp"
	"github.com/bareflank/microkernel/pkg/vs"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// Action is what an extension's registered callback asks the dispatcher
// to do next, in place of actually returning control via a raw vmcall.
// Per spec.md §4.4/§5, a callback must end in one of run/run_current/
// promote/exit; any other outcome (including the zero value, modeling a
// callback that fell off the end) is a protocol violation.
type Action int

const (
	// ActionNone is the zero value: "the callback returned without
	// calling run or promote", a fast-fail condition.
	ActionNone Action = iota
	ActionRun
	ActionRunCurrent
	ActionPromote
	ActionWait
	ActionAgain
	ActionExit
)

// VMExitCallback is the extension's registered vmexit handler.
type VMExitCallback func(pp, vsid ident.ID, exitReason uint64) Action

// FailCallback is the extension's registered exception handler. vector
// and errorCode describe the architectural fault that reached the ESR
// (spec.md §7 category 4).
type FailCallback func(pp ident.ID, vector, errorCode uint64) Action

// BootstrapCallback runs once per PP at startup, before any VM-exit or
// syscall is possible on that PP.
type BootstrapCallback func(pp ident.ID) Action

// Callbacks holds the Go functions standing in for the extension's
// registered entry points. Exactly one extension exists per build
// (ident.MaxExts == 1), so one Callbacks value suffices.
type Callbacks struct {
	Bootstrap BootstrapCallback
	VMExit    VMExitCallback
	Fail      FailCallback
}

// Config is everything New needs to build a Dispatcher. pkg/boot
// constructs every pool once at startup and passes them in here; a test
// may build a smaller Config directly.
type Config struct {
	NPPs int
	CPUs []*intrinsic.CPU // indexed by pp, shared with pkg/vs

	VM      *vm.Pool
	VP      *vp.Pool
	VS      *vs.Pool
	TLS     *tls.Pool
	Handles *handleop.Pool
	Ext     *ext.Pool
	Debug   *debugring.Pool
	ExitLog *vmexitlog.Pool
	Pages   *pagepool.Pool
	Huge    *hugepool.Pool

	// RootRegs is the register snapshot the loader captured for the
	// root VP before handing off to the microkernel (spec.md §6:
	// "captured root-VP state"). vs_op_init_as_root applies it to
	// whichever vsid the extension asks to initialize, mirroring the
	// original's single root-VS bootstrap path.
	RootRegs map[vsregs.Reg]uint64
}

// Dispatcher is the microkernel's single entry point for syscalls and
// VM-exits. All of its state (besides the Callbacks value) lives in the
// pools it wires together; Dispatcher itself holds no per-object state.
type Dispatcher struct {
	nPPs int
	cpus []*intrinsic.CPU

	vmPool  *vm.Pool
	vpPool  *vp.Pool
	vsPool  *vs.Pool
	tlsPool *tls.Pool
	handles *handleop.Pool
	extPool *ext.Pool
	debug   *debugring.Pool
	exitlog *vmexitlog.Pool
	pages   *pagepool.Pool
	huge    *hugepool.Pool

	rootRegs map[vsregs.Reg]uint64

	mu  sync.Mutex
	cbs Callbacks
}

// New builds a Dispatcher from cfg. Callbacks start unset and only
// SetCallbacks populates them; the CALLBACK family syscalls record entry
// addresses on the ext.Image instead.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		nPPs:    cfg.NPPs,
		cpus:    cfg.CPUs,
		vmPool:  cfg.VM,
		vpPool:  cfg.VP,
		vsPool:  cfg.VS,
		tlsPool: cfg.TLS,
		handles: cfg.Handles,
		extPool: cfg.Ext,
		debug:   cfg.Debug,
		exitlog: cfg.ExitLog,
		pages:    cfg.Pages,
		huge:     cfg.Huge,
		rootRegs: cfg.RootRegs,
	}
}

// SetCallbacks installs cbs directly, bypassing the CALLBACK family
// syscalls. Used by pkg/boot for a synthetic root extension and by tests
// that want to drive HandleVMExit/HandleFault without a full CALLBACK
// registration sequence.
func (d *Dispatcher) SetCallbacks(cbs Callbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cbs = cbs
}

func (d *Dispatcher) callbacks() Callbacks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cbs
}

// Args is the up-to-six-register argument convention every hypercall
// follows (spec.md §4.5/§6). By this rewrite's convention, Args[0] is
// always the caller's handle, checked by Syscall itself, except for
// handle_op_open_handle which has no handle yet.
type Args [6]uint64

// Out is the up-to-six output registers a call may fill in alongside its
// returned Status.
type Out [6]uint64

const handleArgIndex = 0

// Syscall is the microkernel's single syscall entry point: it validates
// the opcode signature, enforces the handle check every call but
// open_handle requires, and routes to the opcode's family.
func (d *Dispatcher) Syscall(pp ident.ID, opcode syscallabi.Opcode, args Args) (syscallabi.Status, Out) {
	if !opcode.Valid() {
		return syscallabi.StatusInvalidInputReg(0), Out{}
	}
	family := opcode.Family64()
	index := opcode.Index()

	if !(family == syscallabi.FamilyHandle && index == handleOpOpenHandle) {
		handle := ident.ID(args[handleArgIndex])
		if !d.handles.Valid(handle) {
			return syscallabi.StatusFailureInvalidHandle, Out{}
		}
	}

	switch family {
	case syscallabi.FamilyControl:
		return d.dispatchControl(pp, index, args)
	case syscallabi.FamilyHandle:
		return d.dispatchHandle(index, args)
	case syscallabi.FamilyDebug:
		return d.dispatchDebug(pp, index, args)
	case syscallabi.FamilyCallback:
		return d.dispatchCallback(index, args)
	case syscallabi.FamilyVM:
		return d.dispatchVM(index, args)
	case syscallabi.FamilyVP:
		return d.dispatchVP(index, args)
	case syscallabi.FamilyVS:
		return d.dispatchVS(pp, index, args)
	case syscallabi.FamilyIntrinsic:
		return d.dispatchIntrinsic(pp, index, args)
	case syscallabi.FamilyMem:
		return d.dispatchMem(index, args)
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

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

// Package boot takes an mkargs.Args handoff block and brings up every
// pool, the system RPT, and the dispatcher, then fans the extension's
// per-PP bootstrap out and drives each PP's steady-state VM-exit loop.
// Grounded on original_source/kernel/src/mk_main.hpp's mk_main::initialize
// / mk_main::process two-phase sequencing.
package boot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bareflank/microkernel/pkg/debugring"
	"github.com/bareflank/microkernel/pkg/dispatch"
	"github.com/bareflank/microkernel/pkg/ext"
	"github.com/bareflank/microkernel/pkg/handleop"
	"github.com/bareflank/microkernel/pkg/hugepool"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkargs"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/mklog"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/pagetable"
	"github.com/bareflank/microkernel/pkg/tls"
	"github.com/bareflank/microkernel/pkg/vm"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vp"
	"github.com/bareflank/microkernel/pkg/vs"
	"golang.org/x/sync/errgroup"
)

// Manager owns every pool built from one mkargs.Args and the Dispatcher
// wired on top of them. It is the Go stand-in for mk_main: args in,
// running microkernel out.
type Manager struct {
	nPPs int
	cpus []*intrinsic.CPU

	pages *pagepool.Pool
	huge  *hugepool.Pool
	rpt   *pagetable.Table

	dispatcher *dispatch.Dispatcher

	extStackBase, extStackSize uint64
	extTLSBase, extTLSSize     uint64
}

// guardPageSize is mk_main.hpp's PAGE_SIZE: the unmapped gap inserted
// between consecutive PPs' extension stacks and TLS blocks.
const guardPageSize = 0x1000

// New brings up every pool named in spec.md §2's component table from
// args, in the order mk_main::initialize follows: page pool, huge pool,
// system RPT (+ root VP state), vps/vp/vm pools, extension pool (load +
// verify the one extension image). New does not activate the RPT;
// ActivatePP does that per PP.
func New(args mkargs.Args) (*Manager, error) {
	pages, err := pagepool.New(args.PagePool.FrameCount, pagepool.Phys(args.PagePool.PhysBase))
	if err != nil {
		return nil, fmt.Errorf("boot: page pool: %w", err)
	}

	huge, err := hugepool.New(args.HugePool.FrameCount, hugepool.Phys(args.HugePool.PhysBase))
	if err != nil {
		return nil, fmt.Errorf("boot: huge pool: %w", err)
	}

	cpus := make([]*intrinsic.CPU, args.OnlinePPs)
	for pp := range cpus {
		cpus[pp] = intrinsic.New(intrinsic.Backend(args.Backend))
	}

	rpt, err := pagetable.New(pages, "system_rpt")
	if err != nil {
		return nil, fmt.Errorf("boot: system rpt: %w", err)
	}
	if err := rpt.AddRootVPState(args.RootVPStateVirt, args.RootVPState); err != nil {
		return nil, fmt.Errorf("boot: add root vp state: %w", err)
	}

	vmPool := vm.NewPool(args.OnlinePPs)
	vmPool.AttachPagePool(pages)
	vpPool := vp.NewPool(args.OnlinePPs)
	vsPool := vs.NewPool(pages, cpus, args.Backend)

	tlsPool, err := tls.NewPool(pages, args.OnlinePPs)
	if err != nil {
		return nil, fmt.Errorf("boot: tls pool: %w", err)
	}

	debugPool, err := debugring.NewPool(pages, args.OnlinePPs, args.DebugRing.RPS, args.DebugRing.Burst)
	if err != nil {
		return nil, fmt.Errorf("boot: debug ring pool: %w", err)
	}

	extPool := ext.NewPool()
	if err := extPool.Create(bytes.NewReader(args.ExtELF), args.ExtLoadBase, args.ExtBacking); err != nil {
		// Category 5 fatal per spec.md §7: an extension ELF that fails
		// verification never gets a PP to run on.
		return nil, fmt.Errorf("%w: %v", mkerrors.ErrELFVerification, err)
	}

	d := dispatch.New(dispatch.Config{
		NPPs:    args.OnlinePPs,
		CPUs:    cpus,
		VM:      vmPool,
		VP:      vpPool,
		VS:      vsPool,
		TLS:     tlsPool,
		Handles: handleop.NewPool(),
		Ext:     extPool,
		Debug:   debugPool,
		ExitLog: vmexitlog.NewPool(args.OnlinePPs, args.VMExitLogDepth),
		Pages:   pages,
		Huge:    huge,
		RootRegs: args.RootRegs,
	})

	return &Manager{
		nPPs:         args.OnlinePPs,
		cpus:         cpus,
		pages:        pages,
		huge:         huge,
		rpt:          rpt,
		dispatcher:   d,
		extStackBase: args.ExtStackBase,
		extStackSize: args.ExtStackSize,
		extTLSBase:   args.ExtTLSBase,
		extTLSSize:   args.ExtTLSSize,
	}, nil
}

// Dispatcher returns the Manager's wired Dispatcher, the only thing
// cmd/vmmctl and per-PP trampolines need after boot.
func (m *Manager) Dispatcher() *dispatch.Dispatcher { return m.dispatcher }

// ActivatePP loads pp's CR3 with the system RPT's physical root,
// mirroring root_page_table_t::activate() in mk_main::initialize.
func (m *Manager) ActivatePP(pp ident.ID) error {
	if !ident.Valid(pp, len(m.cpus)) {
		return fmt.Errorf("boot: invalid pp %d", pp)
	}
	cpu := m.cpus[pp]
	if err := m.rpt.Activate(func(phys uintptr) error {
		return cpu.WriteCR(intrinsic.CR3, uint64(phys))
	}); err != nil {
		return err
	}
	if m.extTLSSize == 0 {
		return nil
	}
	// set_extension_tp's m_intrinsic.set_tp(tls.tp): program this PP's
	// TLS base register so the extension's TLS accesses land in its own
	// per-PP block.
	return cpu.WriteMSR(intrinsic.MSRIA32FSBase, m.ExtensionTLSPointer(pp))
}

// ExtensionStackPointer returns the top of pp's extension stack, the
// value mk_main.hpp's set_extension_sp assigns to tls.sp before ever
// calling into the extension. Each PP's stack is separated from its
// neighbors by one guard page.
func (m *Manager) ExtensionStackPointer(pp ident.ID) uint64 {
	offset := (m.extStackSize + guardPageSize) * uint64(pp)
	return m.extStackBase + offset + m.extStackSize
}

// ExtensionTLSPointer returns pp's extension TLS block address, the
// value mk_main.hpp's set_extension_tp assigns to tls.tp (and also
// programs into the architectural TLS base register via
// intrinsic_t::set_tp, spec.md §6's "TLS block" device-visible state).
func (m *Manager) ExtensionTLSPointer(pp ident.ID) uint64 {
	offset := (m.extTLSSize + guardPageSize) * uint64(pp)
	return m.extTLSBase + offset + guardPageSize
}

// Bootstrap fans the extension's bootstrap callback out across every
// online PP (mk_main::process calling ext_pool_t::bootstrap once per
// PP). cbs is installed on the Dispatcher first, so a bootstrap callback
// that itself issues syscalls (create_vm/create_vp/create_vs/
// init_as_root/run, exactly as a real extension's bootstrap handler
// would) reaches the same Dispatcher its return value is being
// validated against.
//
// Unlike the steady-state VM-exit loop, a bootstrap failure on any PP
// aborts the whole boot: per spec.md §7, a fast-fail during bootstrap
// means no VM has successfully entered root mode productively on that
// PP yet, so there is nothing to isolate. golang.org/x/sync/errgroup
// collects the first such failure and the cancelable context lets
// Manager reject the remaining PPs' goroutines before they start.
func (m *Manager) Bootstrap(ctx context.Context, cbs dispatch.Callbacks) error {
	m.dispatcher.SetCallbacks(cbs)

	g, gctx := errgroup.WithContext(ctx)
	for pp := 0; pp < m.nPPs; pp++ {
		pp := ident.ID(pp)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := m.ActivatePP(pp); err != nil {
				return err
			}
			if cbs.Bootstrap == nil {
				return fmt.Errorf("%w: pp %d: no bootstrap callback registered", mkerrors.ErrProtocolViolation, pp)
			}
			switch action := cbs.Bootstrap(pp); action {
			case dispatch.ActionRun, dispatch.ActionRunCurrent, dispatch.ActionWait:
				return nil
			default:
				return fmt.Errorf("%w: pp %d: bootstrap returned %v, want run/run_current/wait", mkerrors.ErrProtocolViolation, pp, action)
			}
		})
	}
	return g.Wait()
}

// RunLoop is vmexit_loop_entry(): repeatedly dispatch VM-exits on pp
// until HandleVMExit returns an error (ErrPPHalted on a fast-fail, or a
// caller-injected stop) or ctx is done. A halted PP's error never
// reaches any other PP's RunLoop goroutine — each runs independently,
// matching spec.md §7's "the PP is halted [...] the other PPs continue."
func (m *Manager) RunLoop(ctx context.Context, pp ident.ID) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.dispatcher.HandleVMExit(pp); err != nil {
			mklog.PP(pp).WithError(err).Warn("pp exiting vmexit loop")
			return err
		}
	}
}

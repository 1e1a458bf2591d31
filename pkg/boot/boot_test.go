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

package boot

import (
	"context"
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/debugring"
	"github.com/bareflank/microkernel/pkg/dispatch"
	"github.com/bareflank/microkernel/pkg/ext"
	"github.com/bareflank/microkernel/pkg/handleop"
	"github.com/bareflank/microkernel/pkg/hugepool"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/pagetable"
	"github.com/bareflank/microkernel/pkg/tls"
	"github.com/bareflank/microkernel/pkg/vm"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vp"
	"github.com/bareflank/microkernel/pkg/vs"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

const testBootNPPs = 3

// newTestManager builds a Manager the way New does, but skips
// ext.Pool.Create (which needs a real parsed ELF image) so tests can
// exercise Bootstrap/RunLoop against a Manager with no extension loaded.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	pages, err := pagepool.New(256, 0x7000_0000)
	if err != nil {
		t.Fatalf("pagepool.New: %v", err)
	}
	t.Cleanup(func() { _ = pages.Close() })

	huge, err := hugepool.New(32, 0x8000_0000)
	if err != nil {
		t.Fatalf("hugepool.New: %v", err)
	}
	t.Cleanup(func() { _ = huge.Close() })

	cpus := make([]*intrinsic.CPU, testBootNPPs)
	for i := range cpus {
		cpus[i] = intrinsic.New(intrinsic.BackendIntel)
	}

	rpt, err := pagetable.New(pages, "system_rpt")
	if err != nil {
		t.Fatalf("pagetable.New: %v", err)
	}

	vmPool := vm.NewPool(testBootNPPs)
	vmPool.AttachPagePool(pages)
	vpPool := vp.NewPool(testBootNPPs)
	vsPool := vs.NewPool(pages, cpus, vsregs.BackendIntel)

	tlsPool, err := tls.NewPool(pages, testBootNPPs)
	if err != nil {
		t.Fatalf("tls.NewPool: %v", err)
	}
	t.Cleanup(func() { _ = tlsPool.Close() })

	debugPool, err := debugring.NewPool(pages, testBootNPPs, 1e6, 1<<20)
	if err != nil {
		t.Fatalf("debugring.NewPool: %v", err)
	}
	t.Cleanup(func() { _ = debugPool.Close() })

	d := dispatch.New(dispatch.Config{
		NPPs:    testBootNPPs,
		CPUs:    cpus,
		VM:      vmPool,
		VP:      vpPool,
		VS:      vsPool,
		TLS:     tlsPool,
		Handles: handleop.NewPool(),
		Ext:     ext.NewPool(),
		Debug:   debugPool,
		ExitLog: vmexitlog.NewPool(testBootNPPs, 16),
		Pages:   pages,
		Huge:    huge,
	})

	return &Manager{
		nPPs:         testBootNPPs,
		cpus:         cpus,
		pages:        pages,
		huge:         huge,
		rpt:          rpt,
		dispatcher:   d,
		extStackBase: 0x0000_7100_0000_0000,
		extStackSize: 0x4000,
		extTLSBase:   0x0000_7200_0000_0000,
		extTLSSize:   0x1000,
	}
}

func TestExtensionStackPointerSeparatesPPsByGuardPage(t *testing.T) {
	m := newTestManager(t)
	sp0 := m.ExtensionStackPointer(0)
	sp1 := m.ExtensionStackPointer(1)
	wantStride := m.extStackSize + guardPageSize
	if sp1-sp0 != wantStride {
		t.Fatalf("stack pointer stride = %#x, want %#x", sp1-sp0, wantStride)
	}
	if sp0 != m.extStackBase+m.extStackSize {
		t.Fatalf("pp 0 stack pointer = %#x, want base+size = %#x", sp0, m.extStackBase+m.extStackSize)
	}
}

func TestExtensionTLSPointerSeparatesPPsByGuardPage(t *testing.T) {
	m := newTestManager(t)
	tp0 := m.ExtensionTLSPointer(0)
	tp1 := m.ExtensionTLSPointer(1)
	wantStride := m.extTLSSize + guardPageSize
	if tp1-tp0 != wantStride {
		t.Fatalf("tls pointer stride = %#x, want %#x", tp1-tp0, wantStride)
	}
	if tp0 != m.extTLSBase+guardPageSize {
		t.Fatalf("pp 0 tls pointer = %#x, want base+guard = %#x", tp0, m.extTLSBase+guardPageSize)
	}
}

func TestActivatePPProgramsTLSBaseMSR(t *testing.T) {
	m := newTestManager(t)
	if err := m.ActivatePP(1); err != nil {
		t.Fatalf("ActivatePP: %v", err)
	}
	got, err := m.cpus[1].ReadMSR(intrinsic.MSRIA32FSBase)
	if err != nil {
		t.Fatalf("ReadMSR: %v", err)
	}
	if want := m.ExtensionTLSPointer(1); got != want {
		t.Fatalf("IA32_FS_BASE = %#x, want %#x", got, want)
	}
}

func TestBootstrapFansOutAcrossAllPPs(t *testing.T) {
	m := newTestManager(t)
	seen := make(chan ident.ID, testBootNPPs)
	cbs := dispatch.Callbacks{
		Bootstrap: func(pp ident.ID) dispatch.Action {
			seen <- pp
			return dispatch.ActionWait
		},
	}
	if err := m.Bootstrap(context.Background(), cbs); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	close(seen)
	count := 0
	for range seen {
		count++
	}
	if count != testBootNPPs {
		t.Fatalf("bootstrap callback ran on %d pps, want %d", count, testBootNPPs)
	}
}

func TestBootstrapWithoutCallbackFails(t *testing.T) {
	m := newTestManager(t)
	err := m.Bootstrap(context.Background(), dispatch.Callbacks{})
	if !errors.Is(err, mkerrors.ErrProtocolViolation) {
		t.Fatalf("Bootstrap (no callback) = %v, want ErrProtocolViolation", err)
	}
}

func TestBootstrapProtocolViolationAborts(t *testing.T) {
	m := newTestManager(t)
	cbs := dispatch.Callbacks{
		Bootstrap: func(pp ident.ID) dispatch.Action { return dispatch.ActionNone },
	}
	err := m.Bootstrap(context.Background(), cbs)
	if !errors.Is(err, mkerrors.ErrProtocolViolation) {
		t.Fatalf("Bootstrap (ActionNone) = %v, want ErrProtocolViolation", err)
	}
}

func TestActivatePPRejectsOutOfRange(t *testing.T) {
	m := newTestManager(t)
	if err := m.ActivatePP(ident.ID(testBootNPPs)); err == nil {
		t.Fatalf("ActivatePP(out of range) = nil, want error")
	}
}

func TestRunLoopStopsOnCanceledContext(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.RunLoop(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunLoop (canceled ctx) = %v, want context.Canceled", err)
	}
}

func TestRunLoopPropagatesHalt(t *testing.T) {
	m := newTestManager(t)
	err := m.RunLoop(context.Background(), 0)
	if !errors.Is(err, mkerrors.ErrPPHalted) {
		t.Fatalf("RunLoop (no active vs, no callback) = %v, want ErrPPHalted", err)
	}
}

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
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

func newTestPool(t *testing.T, nPPs int, backend vsregs.Backend) (*Pool, *pagepool.Pool) {
	t.Helper()
	pages, err := pagepool.New(64, 0x5000_0000)
	if err != nil {
		t.Fatalf("pagepool.New: %v", err)
	}
	t.Cleanup(func() { _ = pages.Close() })
	cpus := make([]*intrinsic.CPU, nPPs)
	for i := range cpus {
		cpus[i] = intrinsic.New(intrinsic.BackendIntel)
	}
	return NewPool(pages, cpus, backend), pages
}

func TestCreateAndReadWriteRoundTrip(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Write(id, vsregs.RegRax, 0x1234_5678_90AB_CDEF); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(id, vsregs.RegRax)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0x1234_5678_90AB_CDEF {
		t.Errorf("Read(rax) = %#x, want 0x1234567890ABCDEF", got)
	}
}

func TestWriteUnsupportedFieldOnBackend(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendAMD)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Write(id, vsregs.RegVmFunctionCtls, 1); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("Write(VmFunctionCtls) on AMD = %v, want ErrUnsupported", err)
	}
}

func TestRunWrongPPFails(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 1)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if _, err := p.Run(0, id); !errors.Is(err, mkerrors.ErrWrongPP) {
		t.Fatalf("Run from wrong pp = %v, want ErrWrongPP", err)
	}
}

func TestRunReturnsExitReason(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Write(id, vsregs.RegExitReason, 7); err != nil {
		t.Fatalf("Write(ExitReason): %v", err)
	}
	reason, err := p.Run(0, id)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason != 7 {
		t.Errorf("Run exit reason = %d, want 7", reason)
	}
}

func TestDestroyActiveFails(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if _, err := p.Run(0, id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.DestroyVS(id); !errors.Is(err, mkerrors.ErrActive) {
		t.Fatalf("DestroyVS while active = %v, want ErrActive", err)
	}
}

func TestClearThenMigrateThenRunOnNewPP(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if _, err := p.Run(0, id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Active VSs cannot migrate: the caller must make it inactive first,
	// which here happens by running a different VS on the same PP.
	other, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS other: %v", err)
	}
	if _, err := p.Run(0, other); err != nil {
		t.Fatalf("Run other: %v", err)
	}
	if err := p.Clear(id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := p.Migrate(id, 1); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := p.Run(1, id); err != nil {
		t.Fatalf("Run on new pp: %v", err)
	}
}

func TestMigrateWithoutClearFails(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Migrate(id, 1); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("Migrate without clear = %v, want ErrUnsupported", err)
	}
}

func TestSetActiveRollsBackOnTLSFailure(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	wantErr := errors.New("tls commit failed")
	err = p.SetActive(0, ident.RootVMID, 0, id, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("SetActive = %v, want %v", err, wantErr)
	}
	rows := p.Dump()
	if len(rows) != 1 || rows[0].State != StateAllocated {
		t.Fatalf("state after rollback = %+v, want StateAllocated", rows)
	}
}

func TestSetActiveCommitsOnSuccess(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	committed := false
	if err := p.SetActive(0, ident.RootVMID, 0, id, func() error { committed = true; return nil }); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if !committed {
		t.Fatalf("commitTLS not called")
	}
	rows := p.Dump()
	if rows[0].State != StateActive {
		t.Errorf("state after SetActive = %v, want StateActive", rows[0].State)
	}
}

func TestPromoteWrongPPFails(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 1)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Promote(0, id); !errors.Is(err, mkerrors.ErrWrongPP) {
		t.Fatalf("Promote from wrong pp = %v, want ErrWrongPP", err)
	}
}

func TestDemoteClearsWithoutPriorRun(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Demote(0, id); err != nil {
		t.Fatalf("Demote: %v", err)
	}
	rows := p.Dump()
	if rows[0].State != StateCleared {
		t.Errorf("state after Demote = %v, want StateCleared", rows[0].State)
	}
}

func TestDemoteWrongPPFails(t *testing.T) {
	p, _ := newTestPool(t, 2, vsregs.BackendIntel)
	id, err := p.CreateVS(ident.RootVMID, 0, 1)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.Demote(0, id); !errors.Is(err, mkerrors.ErrWrongPP) {
		t.Fatalf("Demote from wrong pp = %v, want ErrWrongPP", err)
	}
}

func TestNMIWindowUnsupportedOnAMD(t *testing.T) {
	p, _ := newTestPool(t, 1, vsregs.BackendAMD)
	id, err := p.CreateVS(ident.RootVMID, 0, 0)
	if err != nil {
		t.Fatalf("CreateVS: %v", err)
	}
	if err := p.SetNMIWindowPending(id, true); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("SetNMIWindowPending on AMD = %v, want ErrUnsupported", err)
	}
}

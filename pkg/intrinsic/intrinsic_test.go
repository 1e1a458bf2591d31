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

package intrinsic

import (
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func TestCRReadWriteRoundTrip(t *testing.T) {
	c := New(BackendIntel)
	if err := c.WriteCR(CR3, 0xDEAD_B000); err != nil {
		t.Fatalf("WriteCR: %v", err)
	}
	got, err := c.ReadCR(CR3)
	if err != nil {
		t.Fatalf("ReadCR: %v", err)
	}
	if got != 0xDEAD_B000 {
		t.Errorf("ReadCR(CR3) = %#x, want 0xDEADB000", got)
	}
}

func TestMSRUnsupportedRejected(t *testing.T) {
	c := New(BackendAMD)
	if _, err := c.ReadMSR(MSR(0x9999)); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("ReadMSR(unknown) = %v, want ErrUnsupported", err)
	}
}

func TestMSRRoundTrip(t *testing.T) {
	c := New(BackendIntel)
	if err := c.WriteMSR(MSRIA32EFER, 0x500); err != nil {
		t.Fatalf("WriteMSR: %v", err)
	}
	got, err := c.ReadMSR(MSRIA32EFER)
	if err != nil {
		t.Fatalf("ReadMSR: %v", err)
	}
	if got != 0x500 {
		t.Errorf("ReadMSR(EFER) = %#x, want 0x500", got)
	}
}

func TestVmreadVmwriteRoundTrip64(t *testing.T) {
	page := make([]byte, 4096)
	if err := Vmwrite(page, 0x100, 64, 0x1122_3344_5566_7788); err != nil {
		t.Fatalf("Vmwrite: %v", err)
	}
	got, err := Vmread(page, 0x100, 64)
	if err != nil {
		t.Fatalf("Vmread: %v", err)
	}
	if got != 0x1122_3344_5566_7788 {
		t.Errorf("Vmread = %#x, want 0x1122334455667788", got)
	}
}

func TestVmreadOutOfBounds(t *testing.T) {
	page := make([]byte, 16)
	if _, err := Vmread(page, 10, 64); err == nil {
		t.Fatalf("Vmread out of bounds = nil error, want error")
	}
}

func TestLoadClearTracksLoadedPage(t *testing.T) {
	c := New(BackendIntel)
	page := make([]byte, 4096)
	c.Load(page)
	if c.Loaded() == nil {
		t.Fatalf("Loaded() = nil after Load")
	}
	c.Clear()
	if c.Loaded() != nil {
		t.Fatalf("Loaded() non-nil after Clear")
	}
}

func TestRunWithNoVSLoadedFails(t *testing.T) {
	c := New(BackendIntel)
	exec := func(page []byte, backend Backend) (uint64, error) { return 0, nil }
	if _, err := c.Run(exec, true); err == nil {
		t.Fatalf("Run with nothing loaded = nil error, want error")
	}
}

func TestRunInvokesExecutorOnLoadedPage(t *testing.T) {
	c := New(BackendAMD)
	page := make([]byte, 4096)
	c.Load(page)
	const wantReason = uint64(0x42)
	exec := func(got []byte, backend Backend) (uint64, error) {
		if backend != BackendAMD {
			t.Errorf("executor backend = %v, want BackendAMD", backend)
		}
		return wantReason, nil
	}
	reason, err := c.Run(exec, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason != wantReason {
		t.Errorf("Run reason = %#x, want %#x", reason, wantReason)
	}
}

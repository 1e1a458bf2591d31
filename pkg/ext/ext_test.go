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

package ext

import (
	"errors"
	"testing"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func TestRegisterCallbacksOnce(t *testing.T) {
	img := &Image{Handle: ident.Invalid, Start: 0x1000}
	if err := img.RegisterCallbacks(0x1100, 0x1200, 0x1300); err != nil {
		t.Fatalf("RegisterCallbacks: %v", err)
	}
	if img.Start != 0x1000 || img.Bootstrap != 0x1100 || img.VMExit != 0x1200 || img.Fail != 0x1300 {
		t.Fatalf("entry points = %#x %#x %#x %#x, want 0x1000 0x1100 0x1200 0x1300",
			img.Start, img.Bootstrap, img.VMExit, img.Fail)
	}
	if err := img.RegisterCallbacks(1, 2, 3); !errors.Is(err, mkerrors.ErrProtocolViolation) {
		t.Fatalf("RegisterCallbacks (second call) = %v, want ErrProtocolViolation", err)
	}
}

func TestRegisterIndividualCallbacksOnceEach(t *testing.T) {
	img := &Image{Handle: ident.Invalid}
	if err := img.RegisterVMExit(0x2200); err != nil {
		t.Fatalf("RegisterVMExit: %v", err)
	}
	if err := img.RegisterVMExit(0x2201); !errors.Is(err, mkerrors.ErrProtocolViolation) {
		t.Fatalf("RegisterVMExit (second call) = %v, want ErrProtocolViolation", err)
	}
	if err := img.RegisterBootstrap(0x2100); err != nil {
		t.Fatalf("RegisterBootstrap: %v", err)
	}
	if err := img.RegisterFail(0x2300); err != nil {
		t.Fatalf("RegisterFail: %v", err)
	}
}

func TestPoolGetBeforeCreateFails(t *testing.T) {
	p := NewPool()
	if _, err := p.Get(); !errors.Is(err, mkerrors.ErrNotOwned) {
		t.Fatalf("Get (empty pool) = %v, want ErrNotOwned", err)
	}
}

func TestPoolCreateOnceOnly(t *testing.T) {
	p := NewPool()
	p.image = &Image{LoadBase: 0x1000, ImageSize: 0x2000, Backing: make([]byte, 0x2000)}
	if err := p.Create(nil, 0, nil); !errors.Is(err, mkerrors.ErrPoolExhausted) {
		t.Fatalf("Create (already loaded) = %v, want ErrPoolExhausted", err)
	}
}

func TestPoolDumpIsDeepCopy(t *testing.T) {
	p := NewPool()
	p.image = &Image{LoadBase: 0x4000, ImageSize: 0x1000, Start: 0x4010}
	d, err := p.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	d.Annotations["load_base"] = "tampered"
	d2, err := p.Dump()
	if err != nil {
		t.Fatalf("Dump (second): %v", err)
	}
	if d2.Annotations["load_base"] == "tampered" {
		t.Fatalf("Dump shares map storage across calls; mutating one copy affected another")
	}
}

func TestDescriptorCarriesEntryPoints(t *testing.T) {
	img := &Image{LoadBase: 0x1000, Start: 0x1010, Bootstrap: 0x1020, VMExit: 0x1030, Fail: 0x1040}
	d := img.descriptor()
	if d.Annotations["start"] != "0x1010" {
		t.Errorf("Annotations[start] = %q, want 0x1010", d.Annotations["start"])
	}
	if d.Annotations["fail"] != "0x1040" {
		t.Errorf("Annotations[fail] = %q, want 0x1040", d.Annotations["fail"])
	}
}

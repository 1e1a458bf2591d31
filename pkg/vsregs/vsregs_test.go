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

package vsregs

import "testing"

func TestEncodingIntelKnownField(t *testing.T) {
	loc, width, ok := Encoding(RegCr3, BackendIntel)
	if !ok {
		t.Fatalf("Encoding(RegCr3, Intel) not ok")
	}
	if loc == 0 || width != 64 {
		t.Errorf("Encoding(RegCr3, Intel) = %#x, %d, want nonzero, 64", loc, width)
	}
}

func TestEncodingAMDUnsupportedField(t *testing.T) {
	// vm_function_ctls has no AMD offset in the table: SVM has no VMFUNC
	// equivalent, so writes to it on an AMD backend must fail UNSUPPORTED.
	if _, _, ok := Encoding(RegVmFunctionCtls, BackendAMD); ok {
		t.Errorf("Encoding(RegVmFunctionCtls, AMD) = ok, want unsupported")
	}
}

func TestRegStringKnownAndUnknown(t *testing.T) {
	if got := RegRax.String(); got != "rax" {
		t.Errorf("RegRax.String() = %q, want %q", got, "rax")
	}
	unknown := Reg(Count() + 1000)
	if got := unknown.String(); got == "" {
		t.Errorf("unknown Reg.String() returned empty string")
	}
}

func TestCountMatchesTable(t *testing.T) {
	if Count() != len(nameTable) {
		t.Errorf("Count() = %d, len(nameTable) = %d", Count(), len(nameTable))
	}
}

// TestHostStateFieldsPresent guards against the field table regressing
// to only the guest-state subset: kernel/src/x64/intel/vmcs_t.hpp's
// host-state-area fields must each have their own Reg so vs.Read/vs.Write
// can express them.
func TestHostStateFieldsPresent(t *testing.T) {
	for _, r := range []Reg{
		RegHostEsSelector, RegHostCsSelector, RegHostSsSelector,
		RegHostDsSelector, RegHostFsSelector, RegHostGsSelector,
		RegHostTrSelector, RegHostCr0, RegHostCr3, RegHostCr4,
		RegHostGdtrBase, RegHostIdtrBase, RegHostRsp, RegHostRip,
		RegVirtualProcessorIdentifier, RegPostedInterruptNotificationVector,
		RegEptpIndex,
	} {
		if _, _, ok := Encoding(r, BackendIntel); !ok {
			t.Errorf("Encoding(%s, Intel) not ok, want a field encoding", r)
		}
	}
}

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

// Package vsregs provides the bf_reg_t field table (spec.md §4.3): the
// tagged enumeration of every VMCS/VMCB field a vs_t exposes through
// read/write, plus the per-backend encoding needed to reach it. The table
// itself is generated (table_gen.go) from tools/genregs/fields.go; this
// file holds the small hand-written lookup surface pkg/vs calls into.
//
//go:generate sh -c "go run ../../tools/genregs > table_gen.go"
package vsregs

import "fmt"

// Backend selects which architecture's encoding a lookup uses.
type Backend int

const (
	BackendIntel Backend = iota
	BackendAMD
)

// String implements fmt.Stringer.
func (r Reg) String() string {
	if int(r) >= len(nameTable) {
		return fmt.Sprintf("Reg(%d)", uint32(r))
	}
	return nameTable[r]
}

// Valid reports whether r is a known field.
func Valid(r Reg) bool {
	return int(r) < len(encodingTable)
}

// Encoding returns the backend-specific location of r and its width in
// bits. ok is false if r does not exist on the requested backend, which
// callers surface as mkerrors.ErrUnsupported (spec.md §4.3: "Writes that
// require the field to exist on the current microarchitecture fail with
// UNSUPPORTED when absent").
func Encoding(r Reg, b Backend) (loc uint64, width int, ok bool) {
	if !Valid(r) {
		return 0, 0, false
	}
	e := encodingTable[r]
	switch b {
	case BackendIntel:
		if e.intel == 0 {
			return 0, 0, false
		}
		return e.intel, e.width, true
	case BackendAMD:
		if e.amd == 0 {
			return 0, 0, false
		}
		return e.amd, e.width, true
	default:
		return 0, 0, false
	}
}

// Count returns the number of known fields, mostly useful for tests and
// for sizing dump tables.
func Count() int {
	return len(encodingTable)
}

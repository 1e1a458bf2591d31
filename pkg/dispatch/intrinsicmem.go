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
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/intrinsic"
	"github.com/bareflank/microkernel/pkg/syscallabi"
)

// INTRINSIC family indices.
const (
	intrinsicOpRdmsr uint16 = iota
	intrinsicOpWrmsr
)

func (d *Dispatcher) dispatchIntrinsic(pp ident.ID, index uint16, args Args) (syscallabi.Status, Out) {
	if !ident.Valid(pp, len(d.cpus)) {
		return syscallabi.StatusInvalidInputReg(0), Out{}
	}
	cpu := d.cpus[pp]
	switch index {
	case intrinsicOpRdmsr:
		val, err := cpu.ReadMSR(intrinsic.MSR(args[1]))
		if err != nil {
			return syscallabi.StatusInvalidInputReg(1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: val}
	case intrinsicOpWrmsr:
		if err := cpu.WriteMSR(intrinsic.MSR(args[1]), args[2]); err != nil {
			return syscallabi.StatusInvalidInputReg(1), Out{}
		}
		return syscallabi.StatusSuccess, Out{}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

// MEM family indices.
const (
	memOpAllocPage uint16 = iota
	memOpAllocHuge
)

// Allocation tags used for the memory the MEM family hands to
// extensions, kept distinct from the microkernel's own internal tags so
// pkg/dispatch.DumpPagePool/DumpHugePool can attribute extension memory
// separately (debug_op_dump_{page,huge}_pool, spec.md §4.5).
const (
	extPageTag = "ext_page"
	extHugeTag = "ext_huge"
)

func (d *Dispatcher) dispatchMem(index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case memOpAllocPage:
		addr, err := d.pages.Allocate(extPageTag)
		if err != nil {
			return syscallabi.StatusFailureUnknown, Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(addr)}
	case memOpAllocHuge:
		frames := int(args[1])
		addr, err := d.huge.Allocate(frames, extHugeTag)
		if err != nil {
			return syscallabi.StatusFailureUnknown, Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(addr)}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

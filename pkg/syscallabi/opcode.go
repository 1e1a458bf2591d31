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

// Package syscallabi defines the hypercall opcode layout and status code
// space described in spec.md §4.5 and §6. Every call the extension makes to
// the microkernel arrives as a 64-bit value in a register conventionally
// named rAX; this package is the single place that packs and unpacks it.
package syscallabi

// Signature is the required high 16 bits of every opcode. A mismatch always
// fails with StatusInvalidInputReg0, regardless of the rest of the opcode.
const Signature uint16 = 0x6642

// Family identifies which group of calls an opcode index belongs to.
type Family uint16

// The opcode families from spec.md §4.5.
const (
	FamilyControl Family = iota
	FamilyHandle
	FamilyDebug
	FamilyCallback
	FamilyVM
	FamilyVP
	FamilyVS
	FamilyIntrinsic
	FamilyMem
)

func (f Family) String() string {
	switch f {
	case FamilyControl:
		return "control_op"
	case FamilyHandle:
		return "handle_op"
	case FamilyDebug:
		return "debug_op"
	case FamilyCallback:
		return "callback_op"
	case FamilyVM:
		return "vm_op"
	case FamilyVP:
		return "vp_op"
	case FamilyVS:
		return "vs_op"
	case FamilyIntrinsic:
		return "intrinsic_op"
	case FamilyMem:
		return "mem_op"
	default:
		return "unknown_op"
	}
}

// Opcode is the full, packed rAX value for a hypercall.
//
//	bits 63..48: signature (must equal Signature)
//	bits 47..32: flags (reserved, must be zero)
//	bits 31..16: family
//	bits 15..0:  index within family
type Opcode uint64

// Pack builds an Opcode from its constituent fields, setting the required
// signature automatically.
func Pack(family Family, index uint16) Opcode {
	return Opcode(uint64(Signature)<<48 | uint64(family)<<16 | uint64(index))
}

// Signature64 returns the opcode's signature field.
func (o Opcode) Signature64() uint16 { return uint16(o >> 48) }

// Flags returns the opcode's reserved flags field.
func (o Opcode) Flags() uint16 { return uint16(o >> 32) }

// Family64 returns the opcode's family field.
func (o Opcode) Family64() Family { return Family(uint16(o >> 16)) }

// Index returns the opcode's index-within-family field.
func (o Opcode) Index() uint16 { return uint16(o) }

// Valid reports whether the opcode carries the required signature and a
// zero flags field. It does not validate that Family/Index name a call that
// actually exists; the dispatch table does that.
func (o Opcode) Valid() bool {
	return o.Signature64() == Signature && o.Flags() == 0
}

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

// Package mkargs defines the handoff block the pre-microkernel loader
// (out of scope, specified only by its interface per spec.md §1) hands
// to the microkernel: the pool regions it carved out, the root VP state
// it captured, and the extension image it placed in memory. pkg/boot is
// the only consumer.
package mkargs

import (
	"github.com/bareflank/microkernel/pkg/pagetable"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// PoolRegion describes a contiguous physical region the loader has
// already identity-mapped, along with the virtual base the microkernel
// should address it at (spec.md §4.1's "contiguous loader-supplied
// region").
type PoolRegion struct {
	PhysBase   uintptr
	VirtBase   uint64
	FrameCount int
}

// DebugRingConfig carries the per-PP debug ring's producer-side rate
// limit (spec.md §5/§6). pkg/boot passes RPS and Burst to the ring; it
// does not read Pages, so Pages does not change the ring's size.
type DebugRingConfig struct {
	Pages int
	RPS   float64
	Burst int
}

// Args is mk_args_t: one block, shared by every PP, containing
// everything spec.md §6 lists as loader-to-microkernel handoff state:
// "the microkernel's own RPT root, the huge pool base, the page pool
// base, captured root-VP state, and an array of extension ELF image
// descriptors."
type Args struct {
	// OnlinePPs is the number of physical processors the loader brought
	// up before transferring control (ident.MaxPPs bounds it).
	OnlinePPs int

	Backend vsregs.Backend

	PagePool PoolRegion
	HugePool PoolRegion

	// RootVPState is the loader-captured GDT/IDT/TSS descriptor the
	// microkernel must map into its own RPT before activating it
	// (root_page_table_t::add_root_vp_state in the original).
	RootVPState     pagetable.RootVPState
	RootVPStateVirt uint64

	// RootRegs is the register snapshot of the root VP at the moment
	// control transferred, applied by vs_op_init_as_root to whichever
	// VS the extension designates as the root.
	RootRegs map[vsregs.Reg]uint64

	// ExtELF is the single extension's ELF image bytes (ident.MaxExts
	// == 1); ExtLoadBase is the virtual address the loader placed it
	// at. ExtBacking is the backing store loadELF zeroes BSS into;
	// loadELF applies no relocations to it.
	ExtELF      []byte
	ExtLoadBase uint64
	ExtBacking  []byte

	DebugRing      DebugRingConfig
	VMExitLogDepth int

	// ExtStackBase/ExtStackSize and ExtTLSBase/ExtTLSSize size and place
	// the per-PP extension stack and TLS regions the loader carved out,
	// mirroring mk_main.hpp's EXT_STACK_ADDR/EXT_STACK_SIZE and
	// EXT_TLS_ADDR/EXT_TLS_SIZE. pkg/boot.Manager.ExtensionStackPointer
	// and ExtensionTLSPointer compute the per-PP addresses from these.
	ExtStackBase uint64
	ExtStackSize uint64
	ExtTLSBase   uint64
	ExtTLSSize   uint64
}

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

// Package intrinsic wraps the privileged instructions a VS backend needs:
// MSR and control-register access, VMREAD/VMWRITE-equivalent field
// encode/decode, INVLPG(A), and the VMLAUNCH/VMRESUME/VMRUN mode
// transition. The original issues these directly as inline assembly
// (bfvmm/src/intrinsics); a userspace Go process cannot execute VMX/SVM
// instructions, so every privileged operation here is a seam an
// architecture-specific Executor or CPU struct fills in, the same pattern
// pkg/pagetable.Table.Activate uses for CR3 loads.
package intrinsic

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// Backend selects which instruction set a CPU struct emulates.
type Backend int

const (
	BackendIntel Backend = iota
	BackendAMD
)

// MSR names a model-specific register.
type MSR uint32

// The subset of MSRs vs_t mirrors into guest state (spec.md §4.3).
const (
	MSRIA32FeatureControl   MSR = 0x3A
	MSRIA32VMXBasic         MSR = 0x480
	MSRIA32PAT              MSR = 0x277
	MSRIA32EFER             MSR = 0xC0000080
	MSRIA32SysenterCS       MSR = 0x174
	MSRIA32SysenterESP      MSR = 0x175
	MSRIA32SysenterEIP      MSR = 0x176
	MSRIA32FSBase           MSR = 0xC0000100
	MSRIA32GSBase           MSR = 0xC0000101
	MSRIA32DebugCtl         MSR = 0x1D9
	MSRIA32PerfGlobalCtrl   MSR = 0x38F
	MSREFER                 MSR = MSRIA32EFER
	MSRVMCBAddr             MSR = 0xC0010010 // AMD: VM_HSAVE_PA
)

var supportedMSRs = map[MSR]bool{
	MSRIA32FeatureControl: true,
	MSRIA32VMXBasic:       true,
	MSRIA32PAT:            true,
	MSRIA32EFER:           true,
	MSRIA32SysenterCS:     true,
	MSRIA32SysenterESP:    true,
	MSRIA32SysenterEIP:    true,
	MSRIA32FSBase:         true,
	MSRIA32GSBase:         true,
	MSRIA32DebugCtl:       true,
	MSRIA32PerfGlobalCtrl: true,
	MSRVMCBAddr:           true,
}

// CR names a control register.
type CR int

const (
	CR0 CR = iota
	CR2
	CR3
	CR4
	CR8
	crCount
)

// CPU is one physical processor's simulated privileged-register file: the
// control registers and MSRs a VS's init_as_root and vs_op_write touch
// outside the VMCS/VMCB itself. Every PP in pkg/boot owns exactly one.
type CPU struct {
	mu      sync.Mutex
	backend Backend
	crs     [crCount]uint64
	msrs    map[MSR]uint64
	loaded  []byte // backing page of the VS currently VMPTRLD/VMLOAD'd, if any
}

// New creates a CPU emulating the given backend, all registers zeroed.
func New(backend Backend) *CPU {
	return &CPU{
		backend: backend,
		msrs:    make(map[MSR]uint64),
	}
}

// Backend returns which instruction set this CPU emulates.
func (c *CPU) Backend() Backend {
	return c.backend
}

// ReadCR returns the current value of a control register.
func (c *CPU) ReadCR(cr CR) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cr < 0 || cr >= crCount {
		return 0, fmt.Errorf("intrinsic: invalid control register %d", cr)
	}
	return c.crs[cr], nil
}

// WriteCR sets a control register.
func (c *CPU) WriteCR(cr CR, val uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cr < 0 || cr >= crCount {
		return fmt.Errorf("intrinsic: invalid control register %d", cr)
	}
	c.crs[cr] = val
	return nil
}

// ReadMSR returns the value of an MSR, or ErrUnsupported if this CPU
// doesn't model it.
func (c *CPU) ReadMSR(msr MSR) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !supportedMSRs[msr] {
		return 0, fmt.Errorf("%w: msr %#x", mkerrors.ErrUnsupported, msr)
	}
	return c.msrs[msr], nil
}

// WriteMSR sets an MSR, or returns ErrUnsupported if this CPU doesn't
// model it.
func (c *CPU) WriteMSR(msr MSR, val uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !supportedMSRs[msr] {
		return fmt.Errorf("%w: msr %#x", mkerrors.ErrUnsupported, msr)
	}
	c.msrs[msr] = val
	return nil
}

// Vmread decodes a width-bit field out of a VMCS/VMCB backing page at the
// given byte offset. width must be 16, 32 or 64.
func Vmread(page []byte, offset uint64, width int) (uint64, error) {
	n, err := fieldBounds(page, offset, width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 16:
		return uint64(binary.LittleEndian.Uint16(page[offset : offset+2])), nil
	case 32:
		return uint64(binary.LittleEndian.Uint32(page[offset : offset+4])), nil
	case 64:
		return binary.LittleEndian.Uint64(page[offset : offset+8]), nil
	default:
		return 0, fmt.Errorf("intrinsic: unsupported field width %d", n)
	}
}

// Vmwrite encodes val into a width-bit field of a VMCS/VMCB backing page
// at the given byte offset.
func Vmwrite(page []byte, offset uint64, width int, val uint64) error {
	if _, err := fieldBounds(page, offset, width); err != nil {
		return err
	}
	switch width {
	case 16:
		binary.LittleEndian.PutUint16(page[offset:offset+2], uint16(val))
	case 32:
		binary.LittleEndian.PutUint32(page[offset:offset+4], uint32(val))
	case 64:
		binary.LittleEndian.PutUint64(page[offset:offset+8], val)
	default:
		return fmt.Errorf("intrinsic: unsupported field width %d", width)
	}
	return nil
}

func fieldBounds(page []byte, offset uint64, width int) (int, error) {
	n := width / 8
	if width != 16 && width != 32 && width != 64 {
		return n, fmt.Errorf("intrinsic: field width must be 16, 32 or 64, got %d", width)
	}
	if offset+uint64(n) > uint64(len(page)) {
		return n, fmt.Errorf("intrinsic: field at offset %#x width %d out of bounds (page len %d)", offset, width, len(page))
	}
	return n, nil
}

// Load is the VMPTRLD (Intel) / VMLOAD (AMD) equivalent: it marks page as
// the VS state this CPU will enter on the next Run.
func (c *CPU) Load(page []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = page
}

// Clear is the VMCLEAR (Intel) / VMSAVE-and-evict (AMD) equivalent: it
// evicts any VS currently loaded on this CPU, required before the VS can
// be loaded on another PP (spec.md §4.3, "A VS must be clear ... before
// being loaded on another PP").
func (c *CPU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = nil
}

// Loaded reports the backing page currently VMPTRLD'd/VMLOAD'd on this
// CPU, if any.
func (c *CPU) Loaded() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Executor performs the actual VMLAUNCH/VMRESUME (Intel) or VMRUN (AMD)
// mode transition into the guest named by page, and returns only once
// control returns to the microkernel on VM-exit. The microkernel proper
// supplies one backed by architecture-specific assembly and a naked
// trampoline (spec.md §4.4); this package never issues the instruction
// itself, matching the decoupling pagetable.Table.Activate uses for CR3.
type Executor func(page []byte, backend Backend) (exitReason uint64, err error)

// Run enters the CPU's currently loaded VS via exec and returns the
// VM-exit reason. launch names VMLAUNCH (first entry of a VS on this CPU)
// as opposed to VMRESUME, but Executor takes no such argument: Run
// discards launch, so exec cannot tell the two apart on either backend.
func (c *CPU) Run(exec Executor, launch bool) (uint64, error) {
	c.mu.Lock()
	page := c.loaded
	c.mu.Unlock()
	if page == nil {
		return 0, fmt.Errorf("intrinsic: Run with no VS loaded")
	}
	_ = launch
	return exec(page, c.backend)
}

// Invlpg invalidates TLB entries for a single guest-linear address on
// Intel (INVLPG) without a guest-linear-to-ASID concept; the caller
// already holds the vs_pool lock serializing this against migrate.
func Invlpg(addr uint64) {
	// No-op in the userspace model: there is no real TLB to invalidate,
	// but the call exists so pkg/vs's tlb_flush accounting path matches
	// the original's instruction-per-invalidation shape.
	_ = addr
}

// Invlpga is the AMD equivalent of Invlpg, additionally scoped to an
// address-space ID.
func Invlpga(addr uint64, asid uint32) {
	_ = addr
	_ = asid
}

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

// Package tls implements the per-PP thread-local-state block (spec.md
// §4.6, §6): a non-shared-by-construction page holding saved guest GPRs
// and the active VM/VP/VS/PP identifiers, at ABI-fixed byte offsets.
// Extensions address their own reserved region of this block through
// fs:-relative accesses; the microkernel reads and writes the reserved
// region documented here through gs:-relative accesses (GS_BASE on Intel
// hosts per spec.md §4.6).
package tls

import (
	"encoding/binary"
	"fmt"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
)

// GPR names one of the saved general-purpose registers in the block.
type GPR int

const (
	RAX GPR = iota
	RBX
	RCX
	RDX
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	gprCount
)

// gprOffset is the byte offset of each GPR, exactly as laid out in
// spec.md §6 ("0x800 rax 0x808 rbx 0x810 rcx 0x818 rdx 0x820 rbp 0x828
// rsi 0x830 rdi 0x838 r8 0x840 r9 0x848 r10 0x850 r11 0x858 r12 0x860
// r13 0x868 r14 0x870 r15").
var gprOffset = [gprCount]uint64{
	RAX: 0x800, RBX: 0x808, RCX: 0x810, RDX: 0x818,
	RBP: 0x820, RSI: 0x828, RDI: 0x830, R8: 0x838,
	R9: 0x840, R10: 0x848, R11: 0x850, R12: 0x858,
	R13: 0x860, R14: 0x868, R15: 0x870,
}

// Fixed offsets for the active-object triple and online PP count
// (spec.md §6: "0xFF0 active_extid (u16) 0xFF2 active_vmid (u16) 0xFF4
// active_vpid (u16) 0xFF6 active_vsid (u16) 0xFF8 active_ppid (u16) 0xFFA
// online_pps (u16)").
const (
	offActiveExtID = 0xFF0
	offActiveVMID  = 0xFF2
	offActiveVPID  = 0xFF4
	offActiveVSID  = 0xFF6
	offActivePPID  = 0xFF8
	offOnlinePPs   = 0xFFA

	// blockSize is one 4 KiB page: the highest offset used (0xFFA, a u16)
	// fits comfortably inside it, matching page_pool's allocation grain.
	blockSize = 0x1000
)

// Block is one PP's TLS page.
type Block struct {
	bytes []byte
}

func (b *Block) gpr(r GPR) (uint64, error) {
	if r < 0 || r >= gprCount {
		return 0, fmt.Errorf("%w: gpr %d", mkerrors.ErrUnmapped, r)
	}
	off := gprOffset[r]
	return binary.LittleEndian.Uint64(b.bytes[off : off+8]), nil
}

func (b *Block) setGPR(r GPR, v uint64) error {
	if r < 0 || r >= gprCount {
		return fmt.Errorf("%w: gpr %d", mkerrors.ErrUnmapped, r)
	}
	off := gprOffset[r]
	binary.LittleEndian.PutUint64(b.bytes[off:off+8], v)
	return nil
}

// GPR reads a saved general-purpose register.
func (b *Block) GPR(r GPR) (uint64, error) { return b.gpr(r) }

// SetGPR writes a saved general-purpose register.
func (b *Block) SetGPR(r GPR, v uint64) error { return b.setGPR(r, v) }

// Triple is the active (extid, vmid, vpid, vsid, ppid) plus the
// build-time online PP count, mirroring spec.md §3's "active triple":
// "all three must be VALID simultaneously, or all three INVALID".
type Triple struct {
	ExtID, VMID, VPID, VSID, PPID ident.ID
	OnlinePPs                     uint16
}

func (b *Block) u16(off int) ident.ID {
	return ident.ID(binary.LittleEndian.Uint16(b.bytes[off : off+2]))
}

func (b *Block) putU16(off int, v ident.ID) {
	binary.LittleEndian.PutUint16(b.bytes[off:off+2], uint16(v))
}

// ActiveTriple reads the currently published active triple.
func (b *Block) ActiveTriple() Triple {
	return Triple{
		ExtID:     b.u16(offActiveExtID),
		VMID:      b.u16(offActiveVMID),
		VPID:      b.u16(offActiveVPID),
		VSID:      b.u16(offActiveVSID),
		PPID:      b.u16(offActivePPID),
		OnlinePPs: uint16(b.u16(offOnlinePPs)),
	}
}

// SetActiveTriple publishes t as the active triple. The three active IDs
// must all be valid or all be ident.Invalid (spec.md §3); callers (e.g.
// pkg/vs.Pool.SetActive's commitTLS callback) are expected to pass a
// fully-valid or fully-invalid triple, never a partial one.
func (b *Block) SetActiveTriple(t Triple) error {
	allValid := t.ExtID != ident.Invalid && t.VMID != ident.Invalid &&
		t.VPID != ident.Invalid && t.VSID != ident.Invalid && t.PPID != ident.Invalid
	allInvalid := t.ExtID == ident.Invalid && t.VMID == ident.Invalid &&
		t.VPID == ident.Invalid && t.VSID == ident.Invalid && t.PPID == ident.Invalid
	if !allValid && !allInvalid {
		return fmt.Errorf("%w: active triple must be all-valid or all-invalid", mkerrors.ErrProtocolViolation)
	}
	b.putU16(offActiveExtID, t.ExtID)
	b.putU16(offActiveVMID, t.VMID)
	b.putU16(offActiveVPID, t.VPID)
	b.putU16(offActiveVSID, t.VSID)
	b.putU16(offActivePPID, t.PPID)
	b.putU16(offOnlinePPs, ident.ID(t.OnlinePPs))
	return nil
}

// ClearActiveTriple sets the active triple to all-invalid, preserving the
// online PP count.
func (b *Block) ClearActiveTriple() {
	b.putU16(offActiveExtID, ident.Invalid)
	b.putU16(offActiveVMID, ident.Invalid)
	b.putU16(offActiveVPID, ident.Invalid)
	b.putU16(offActiveVSID, ident.Invalid)
	b.putU16(offActivePPID, ident.Invalid)
}

// Pool owns one Block per online PP, backed by page_pool allocations
// tagged "tls" (spec.md §4.6: "per-PP TLS blocks are non-shared by
// construction" — pkg/boot allocates one per PP at startup and never
// hands the same page to two PPs).
type Pool struct {
	pages  *pagepool.Pool
	blocks []*Block
	addrs  []pagepool.Addr
}

// NewPool allocates nPPs TLS blocks, one page each, and initializes their
// online_pps field to nPPs.
func NewPool(pages *pagepool.Pool, nPPs int) (*Pool, error) {
	p := &Pool{pages: pages, blocks: make([]*Block, nPPs), addrs: make([]pagepool.Addr, nPPs)}
	for i := 0; i < nPPs; i++ {
		addr, err := pages.Allocate("tls")
		if err != nil {
			return nil, err
		}
		bytes, err := pages.Bytes(addr)
		if err != nil {
			return nil, err
		}
		block := &Block{bytes: bytes}
		block.putU16(offOnlinePPs, ident.ID(nPPs))
		block.ClearActiveTriple()
		p.blocks[i] = block
		p.addrs[i] = addr
	}
	return p, nil
}

// Block returns the TLS block for pp.
func (p *Pool) Block(pp ident.ID) (*Block, error) {
	if !ident.Valid(pp, len(p.blocks)) {
		return nil, fmt.Errorf("%w: pp %d", mkerrors.ErrWrongPP, pp)
	}
	return p.blocks[pp], nil
}

// Close releases every TLS page back to page_pool.
func (p *Pool) Close() error {
	for i, addr := range p.addrs {
		if err := p.pages.Deallocate(addr, "tls"); err != nil {
			return err
		}
		p.blocks[i] = nil
	}
	return nil
}

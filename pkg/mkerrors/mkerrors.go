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

// Package mkerrors holds the host-side sentinel errors used by packages that
// are not bound by the syscallabi.Status convention (boot, ext loading, and
// the vmmctl tooling). Errors that cross the extension syscall boundary are
// never represented this way — see pkg/syscallabi.
package mkerrors

import "errors"

var (
	// ErrPoolExhausted is returned by a pool's allocate path when no free
	// slot remains.
	ErrPoolExhausted = errors.New("mkerrors: pool exhausted")

	// ErrWrongTag is returned by page_pool/huge_pool Deallocate when the tag
	// supplied does not match the tag recorded at Allocate time. This is a
	// fatal programming error in debug builds (spec.md §4.1).
	ErrWrongTag = errors.New("mkerrors: deallocate tag mismatch")

	// ErrNotOwned is returned by virt_to_phys/phys_to_virt when the address
	// was not issued by the pool being asked.
	ErrNotOwned = errors.New("mkerrors: address not owned by this pool")

	// ErrActive is returned by deallocate paths when the target object is
	// still active on at least one PP.
	ErrActive = errors.New("mkerrors: object active on at least one PP")

	// ErrWrongPP is returned when an operation is attempted from, or
	// against, a PP other than the one an object requires.
	ErrWrongPP = errors.New("mkerrors: wrong physical processor")

	// ErrNotClear is returned by migrate when the VS has not been cleared
	// (evicted from hardware cache) on its current PP first.
	ErrNotClear = errors.New("mkerrors: vs not cleared before migrate")

	// ErrAlreadyMapped is returned by root_page_table map_* when the
	// requested granularity is already mapped at that virtual address.
	ErrAlreadyMapped = errors.New("mkerrors: address already mapped")

	// ErrUnmapped is returned by entry/virt_to_phys lookups against an
	// address with no current mapping.
	ErrUnmapped = errors.New("mkerrors: address not mapped")

	// ErrUnsupported is returned when a VS field does not exist on the
	// current microarchitecture.
	ErrUnsupported = errors.New("mkerrors: field unsupported on this microarchitecture")

	// ErrELFVerification is returned by the extension loader when an image
	// fails the basic verification required by spec.md §6.
	ErrELFVerification = errors.New("mkerrors: extension ELF failed verification")

	// ErrProtocolViolation marks a fast-fail caused by an extension
	// violating the callback protocol (e.g. returning normally from a
	// vmexit or fail handler).
	ErrProtocolViolation = errors.New("mkerrors: extension protocol violation")

	// ErrRootVM is returned by vm_pool_t.Destroy when asked to destroy the
	// root VM, which is always rejected independent of its active state
	// (spec.md supplemented feature: vm_op_destroy_vm of the root VM).
	ErrRootVM = errors.New("mkerrors: root VM cannot be destroyed")

	// ErrNotActive is returned by set_inactive-style operations when the
	// object is not active on the PP named.
	ErrNotActive = errors.New("mkerrors: object not active on this pp")

	// ErrPPHalted is returned by pkg/dispatch's fast-fail path once a PP
	// has taken a category-5 fatal error (spec.md §7: "fail returns
	// normally, or extension returns from _start without registering
	// callbacks, or the ELF fails verification: the PP is halted"). The
	// other PPs continue; this one no longer dispatches.
	ErrPPHalted = errors.New("mkerrors: physical processor halted after fatal dispatch failure")
)

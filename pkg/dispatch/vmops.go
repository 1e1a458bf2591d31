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

package dispatch

import (
	"errors"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
	"github.com/bareflank/microkernel/pkg/pagetable"
	"github.com/bareflank/microkernel/pkg/syscallabi"
)

// VM family indices.
const (
	vmOpCreateVM uint16 = iota
	vmOpDestroyVM
	vmOpMapDirect
	vmOpUnmapDirect
	vmOpUnmapDirectBroadcast
	vmOpTLBFlush
)

// statusFor maps a pool error to a syscall status (spec.md §4.5).
// Invalid, out-of-range or never-allocated IDs and wrong-PP use share one
// code, StatusInvalidInputReg(idReg); the other errors map as below.
func statusFor(err error, idReg int) syscallabi.Status {
	switch {
	case err == nil:
		return syscallabi.StatusSuccess
	case errors.Is(err, mkerrors.ErrNotOwned):
		return syscallabi.StatusInvalidInputReg(idReg)
	case errors.Is(err, mkerrors.ErrWrongPP):
		return syscallabi.StatusInvalidInputReg(idReg)
	case errors.Is(err, mkerrors.ErrActive), errors.Is(err, mkerrors.ErrNotActive):
		return syscallabi.StatusInvalidPermDenied
	case errors.Is(err, mkerrors.ErrPoolExhausted):
		return syscallabi.StatusFailureUnknown
	case errors.Is(err, mkerrors.ErrRootVM):
		return syscallabi.StatusInvalidPermDenied
	case errors.Is(err, mkerrors.ErrUnsupported):
		return syscallabi.StatusFailureUnsupported
	default:
		return syscallabi.StatusFailureUnknown
	}
}

func (d *Dispatcher) dispatchVM(index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case vmOpCreateVM:
		id, err := d.vmPool.Allocate()
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(id)}
	case vmOpDestroyVM:
		err := d.vmPool.Destroy(ident.ID(args[1]))
		return statusFor(err, 1), Out{}
	case vmOpMapDirect:
		attrBits := args[4]
		attr := pagetable.Attr{R: attrBits&0x1 != 0, W: attrBits&0x2 != 0, X: attrBits&0x4 != 0}
		mt := pagetable.MemType(args[5])
		err := d.vmPool.MapDirect(ident.ID(args[1]), args[2], uintptr(args[3]), attr, mt)
		return statusFor(err, 1), Out{}
	case vmOpUnmapDirect:
		err := d.vmPool.UnmapDirect(ident.ID(args[1]), args[2])
		return statusFor(err, 1), Out{}
	case vmOpUnmapDirectBroadcast:
		err := d.vmPool.UnmapDirectBroadcast(ident.ID(args[1]), args[2])
		return statusFor(err, 1), Out{}
	case vmOpTLBFlush:
		var addr *uint64
		if args[3] != 0 {
			a := args[2]
			addr = &a
		}
		err := d.vmPool.TLBFlush(ident.ID(args[1]), addr)
		return statusFor(err, 1), Out{}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

// VP family indices.
const (
	vpOpCreateVP uint16 = iota
	vpOpDestroyVP
)

func (d *Dispatcher) dispatchVP(index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case vpOpCreateVP:
		id, err := d.vpPool.Create(ident.ID(args[1]))
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(id)}
	case vpOpDestroyVP:
		err := d.vpPool.Destroy(ident.ID(args[1]))
		return statusFor(err, 1), Out{}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

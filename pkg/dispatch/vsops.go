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
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/syscallabi"
	"github.com/bareflank/microkernel/pkg/tls"
	"github.com/bareflank/microkernel/pkg/vsregs"
)

// VS family indices.
const (
	vsOpCreateVS uint16 = iota
	vsOpDestroyVS
	vsOpInitAsRoot
	vsOpRead
	vsOpWrite
	vsOpRun
	vsOpRunCurrent
	vsOpAdvanceIPAndRun
	vsOpAdvanceIPAndRunCurrent
	vsOpPromote
	vsOpClear
	vsOpMigrate
	vsOpSetActive
	vsOpAdvanceIPAndSetActive
	vsOpTLBFlush
)

// extHandleID is the only handle value handleop.Pool ever issues
// (ident.MaxExts == 1), used to fill the TLS active triple's extid field.
const extHandleID = ident.ID(0)

// commitTLS builds the callback pkg/vs.Pool.SetActive needs to publish a
// new active triple into pp's TLS block atomically with the VS switch.
func (d *Dispatcher) commitTLS(pp, vmid, vpid, vsid ident.ID) func() error {
	return func() error {
		block, err := d.tlsPool.Block(pp)
		if err != nil {
			return err
		}
		return block.SetActiveTriple(tls.Triple{
			ExtID: extHandleID,
			VMID:  vmid,
			VPID:  vpid,
			VSID:  vsid,
			PPID:  pp,
		})
	}
}

func (d *Dispatcher) dispatchVS(pp ident.ID, index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case vsOpCreateVS:
		vpid := ident.ID(args[1])
		ppid := ident.ID(args[2])
		vmid, err := d.vpPool.AssignedVM(vpid)
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		id, err := d.vsPool.CreateVS(vmid, vpid, ppid)
		if err != nil {
			return statusFor(err, 2), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(id)}

	case vsOpDestroyVS:
		err := d.vsPool.DestroyVS(ident.ID(args[1]))
		return statusFor(err, 1), Out{}

	case vsOpInitAsRoot:
		err := d.vsPool.InitAsRoot(ident.ID(args[1]), d.rootRegs)
		return statusFor(err, 1), Out{}

	case vsOpRead:
		val, err := d.vsPool.Read(ident.ID(args[1]), vsregs.Reg(args[2]))
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: val}

	case vsOpWrite:
		err := d.vsPool.Write(ident.ID(args[1]), vsregs.Reg(args[2]), args[3])
		return statusFor(err, 1), Out{}

	case vsOpRun:
		reason, err := d.vsPool.Run(pp, ident.ID(args[1]))
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: reason}

	case vsOpRunCurrent:
		reason, err := d.vsPool.RunCurrent(pp)
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: reason}

	case vsOpAdvanceIPAndRun:
		reason, err := d.vsPool.AdvanceIPAndRun(pp, ident.ID(args[1]))
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: reason}

	case vsOpAdvanceIPAndRunCurrent:
		reason, err := d.vsPool.AdvanceIPAndRunCurrent(pp)
		if err != nil {
			return statusFor(err, 1), Out{}
		}
		return syscallabi.StatusSuccess, Out{0: reason}

	case vsOpPromote:
		err := d.vsPool.Promote(pp, ident.ID(args[1]))
		return statusFor(err, 1), Out{}

	case vsOpClear:
		err := d.vsPool.Clear(ident.ID(args[1]))
		return statusFor(err, 1), Out{}

	case vsOpMigrate:
		err := d.vsPool.Migrate(ident.ID(args[1]), ident.ID(args[2]))
		return statusFor(err, 1), Out{}

	case vsOpSetActive:
		vmid, vpid, vsid := ident.ID(args[1]), ident.ID(args[2]), ident.ID(args[3])
		err := d.vsPool.SetActive(pp, vmid, vpid, vsid, d.commitTLS(pp, vmid, vpid, vsid))
		return statusFor(err, 1), Out{}

	case vsOpAdvanceIPAndSetActive:
		vmid, vpid, vsid := ident.ID(args[1]), ident.ID(args[2]), ident.ID(args[3])
		err := d.vsPool.AdvanceIPAndSetActive(pp, vmid, vpid, vsid, d.commitTLS(pp, vmid, vpid, vsid))
		return statusFor(err, 1), Out{}

	case vsOpTLBFlush:
		var addr *uint64
		if args[2] != 0 {
			a := args[1]
			addr = &a
		}
		vmid := ident.ID(args[3])
		err := d.vsPool.TLBFlush(pp, vmid, addr)
		return statusFor(err, 1), Out{}

	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

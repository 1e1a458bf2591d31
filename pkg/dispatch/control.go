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
)

// CONTROL family indices (spec.md §4.5).
const (
	controlOpExit uint16 = iota
	controlOpWait
	controlOpAgain
)

// dispatchControl handles control_op_{exit,wait,again}. These don't
// touch any pool; they only tell the caller (pkg/boot's per-PP loop)
// what to do next, which this rewrite signals through Status alone —
// there's no architectural difference between them and a normal syscall
// return from the dispatcher's point of view, only in what the PP loop
// does afterward.
func (d *Dispatcher) dispatchControl(pp ident.ID, index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case controlOpExit, controlOpWait, controlOpAgain:
		return syscallabi.StatusSuccess, Out{}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

// HANDLE family indices.
const (
	handleOpOpenHandle uint16 = iota
	handleOpCloseHandle
)

func (d *Dispatcher) dispatchHandle(index uint16, args Args) (syscallabi.Status, Out) {
	switch index {
	case handleOpOpenHandle:
		h, err := d.handles.Open(args[0])
		if err != nil {
			return syscallabi.StatusFailureUnsupported, Out{}
		}
		return syscallabi.StatusSuccess, Out{0: uint64(h)}
	case handleOpCloseHandle:
		if err := d.handles.Close(ident.ID(args[handleArgIndex])); err != nil {
			return syscallabi.StatusFailureInvalidHandle, Out{}
		}
		return syscallabi.StatusSuccess, Out{}
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
}

// CALLBACK family indices.
const (
	callbackOpRegisterBootstrap uint16 = iota
	callbackOpRegisterVMExit
	callbackOpRegisterFail
)

// dispatchCallback backs callback_op_register_{bootstrap,vmexit,fail}:
// it records the entry point on the loaded ext.Image exactly as the
// original does (spec.md §3: "a discoverable callback registration
// sequence at startup"). The Go function actually invoked at that
// address comes from Dispatcher.cbs, wired separately by pkg/boot or a
// test via SetCallbacks.
func (d *Dispatcher) dispatchCallback(index uint16, args Args) (syscallabi.Status, Out) {
	img, err := d.extPool.Get()
	if err != nil {
		return syscallabi.StatusFailureUnknown, Out{}
	}
	ip := args[1]
	switch index {
	case callbackOpRegisterBootstrap:
		err = img.RegisterBootstrap(ip)
	case callbackOpRegisterVMExit:
		err = img.RegisterVMExit(ip)
	case callbackOpRegisterFail:
		err = img.RegisterFail(ip)
	default:
		return syscallabi.StatusFailureUnsupported, Out{}
	}
	if err != nil {
		return syscallabi.StatusFailureUnknown, Out{}
	}
	return syscallabi.StatusSuccess, Out{}
}

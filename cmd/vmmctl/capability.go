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

package main

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"
)

// requiredCapabilities preflights what a process driving a real
// hypervisor device node would need: raw I/O to program MSRs/VMX|SVM
// state, and CAP_SYS_ADMIN for the device's ioctl surface in general.
// This rewrite has no device node to open, so the check is a pure
// preflight: it tells an operator whether the binary they're about to
// run would be permitted to proceed against a real core.
var requiredCapabilities = []capability.Cap{
	capability.CAP_SYS_ADMIN,
	capability.CAP_SYS_RAWIO,
}

func checkCapabilities() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("vmmctl: reading process capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("vmmctl: loading process capabilities: %w", err)
	}
	for _, c := range requiredCapabilities {
		if !caps.Get(capability.EFFECTIVE, c) {
			return fmt.Errorf("vmmctl: missing effective capability %s, required to drive the hypervisor core", c)
		}
	}
	return nil
}

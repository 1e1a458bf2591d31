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

// Package mklog is the microkernel's structured logging entry point. It
// wraps logrus so call sites attach the per-PP/VM/VP/VS identity of the
// operation being logged without repeating field names everywhere.
//
// This is distinct from pkg/debugring: mklog is for the host-visible
// operator/developer log stream, while the debug ring is the only channel
// the pre-hypervisor loader can read (see spec.md §6).
package mklog

import (
	"github.com/sirupsen/logrus"

	"github.com/bareflank/microkernel/pkg/ident"
)

// Logger is the package-wide entry point. Tests may swap it for one backed
// by an in-memory hook.
var Logger = logrus.StandardLogger()

// PP returns an entry scoped to a physical processor, the unit at which
// almost every dispatch-path log line is naturally grouped (spec.md §5:
// "within a PP, [exit/syscall/exception] are mutually exclusive").
func PP(pp ident.ID) *logrus.Entry {
	return Logger.WithField("pp", pp)
}

// Active returns an entry additionally scoped to the active VM/VP/VS triple
// for a PP, mirroring the TLS active-triple fields (spec.md §4.6).
func Active(pp, vmid, vpid, vsid ident.ID) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"pp":   pp,
		"vmid": vmid,
		"vpid": vpid,
		"vsid": vsid,
	})
}

// SetLevel adjusts the global log verbosity. Nothing in this module calls
// it: vmmctl has no log-level flag and its TOML config no log-level key.
func SetLevel(level logrus.Level) {
	Logger.SetLevel(level)
}

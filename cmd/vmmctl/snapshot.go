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

	"github.com/bareflank/microkernel/pkg/dispatch"
	"github.com/bareflank/microkernel/pkg/ext"
	"github.com/bareflank/microkernel/pkg/hugepool"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/pagepool"
	"github.com/bareflank/microkernel/pkg/vm"
	"github.com/bareflank/microkernel/pkg/vmexitlog"
	"github.com/bareflank/microkernel/pkg/vp"
	"github.com/bareflank/microkernel/pkg/vs"
)

// Snapshot is the JSON shape DUMP_VMM produces on disk. vmmctl has no
// device-ioctl transport to a separately running kernel process (the
// whole core runs in-process inside "start"), so "dump" and "ring"
// operate on snapshot/log files start writes out rather than attaching
// to a live instance directly.
type Snapshot struct {
	VM       []vm.Info                    `json:"vm"`
	VP       []vp.Info                    `json:"vp"`
	VS       []vs.Info                    `json:"vs"`
	ExitLog  map[string][]vmexitlog.Entry `json:"exit_log"`
	Ext      ext.Descriptor                `json:"ext"`
	PagePool []pagepool.TagUsage           `json:"page_pool"`
	HugePool []hugepool.TagUsage           `json:"huge_pool"`
}

// takeSnapshot reads every Dump* surface dispatch exposes. A PP with no
// vmexit log entries yet, or an extension that failed Dump (ErrNotOwned,
// before any extension loaded), is recorded as its zero value rather
// than aborting the whole snapshot.
func takeSnapshot(d *dispatch.Dispatcher, nPPs int) Snapshot {
	snap := Snapshot{
		VM:       d.DumpVM(),
		VP:       d.DumpVP(),
		VS:       d.DumpVS(),
		ExitLog:  make(map[string][]vmexitlog.Entry, nPPs),
		PagePool: d.DumpPagePool(),
		HugePool: d.DumpHugePool(),
	}
	if desc, err := d.DumpExt(); err == nil {
		snap.Ext = desc
	}
	for pp := 0; pp < nPPs; pp++ {
		entries, err := d.DumpVMExitLog(ident.ID(pp))
		if err != nil {
			continue
		}
		snap.ExitLog[fmt.Sprintf("%d", pp)] = entries
	}
	return snap
}

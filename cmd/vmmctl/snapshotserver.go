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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bareflank/microkernel/pkg/dispatch"
	"github.com/bareflank/microkernel/pkg/mklog"
)

// serveSnapshotRequests writes a Snapshot to path every time the process
// receives SIGUSR1, giving "vmmctl dump" something to read without a
// device-ioctl transport between the two processes.
func serveSnapshotRequests(ctx context.Context, d *dispatch.Dispatcher, nPPs int, path string) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			snap := takeSnapshot(d, nPPs)
			if err := writeSnapshot(path, snap); err != nil {
				mklog.PP(0).WithError(err).Error("snapshot write failed")
			}
		}
	}
}

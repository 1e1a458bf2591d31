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
	"fmt"
	"os"
	"time"

	"github.com/bareflank/microkernel/pkg/dispatch"
	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mklog"
)

const ringDrainInterval = 250 * time.Millisecond

// tailDebugRingsToFile drains every PP's debug ring into path at a fixed
// interval. It exists because this rewrite has no device node a second
// "vmmctl ring" process could attach to directly: the core and its ring
// buffers only ever live inside the "start" process, so the file is the
// boundary a separate reader polls against instead.
func tailDebugRingsToFile(ctx context.Context, d *dispatch.Dispatcher, nPPs int, path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		mklog.PP(0).WithError(err).Error("ring log: could not open file")
		return
	}
	defer f.Close()

	ticker := time.NewTicker(ringDrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for pp := 0; pp < nPPs; pp++ {
				chunk, err := d.DebugRingRead(ident.ID(pp))
				if err != nil || len(chunk) == 0 {
					continue
				}
				if _, err := fmt.Fprintf(f, "[pp %d] %s", pp, chunk); err != nil {
					mklog.PP(ident.ID(pp)).WithError(err).Warn("ring log: write failed")
				}
			}
		}
	}
}

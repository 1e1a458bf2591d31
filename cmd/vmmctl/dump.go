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
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mattbaird/jsonpatch"
)

// dumpCommand renders a snapshot file a running "start" wrote via
// writeSnapshot (on each SIGUSR1, via serveSnapshotRequests in
// snapshotserver.go), or, with -patch, diffs
// two snapshots against each other so an operator can see exactly what
// changed between two points in the core's lifetime (spec.md §6
// DUMP_VMM's intended use: inspecting accounting state, not just
// reading it once).
type dumpCommand struct {
	patch string
}

func (*dumpCommand) Name() string     { return "dump" }
func (*dumpCommand) Synopsis() string { return "render or diff a DUMP_VMM snapshot file" }
func (*dumpCommand) Usage() string {
	return "dump [-patch <old.json>] <snapshot.json>\n\n" +
		"With no -patch, pretty-prints the snapshot. With -patch, prints the\n" +
		"JSON Patch (RFC 6902) that transforms -patch's snapshot into the\n" +
		"positional one.\n"
}

func (c *dumpCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.patch, "patch", "", "prior snapshot file to diff against")
}

func (c *dumpCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "vmmctl dump: exactly one snapshot file is required")
		return subcommands.ExitUsageError
	}

	next, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl dump: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.patch == "" {
		var snap Snapshot
		if err := json.Unmarshal(next, &snap); err != nil {
			fmt.Fprintf(os.Stderr, "vmmctl dump: %s: %v\n", args[0], err)
			return subcommands.ExitFailure
		}
		pretty, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "vmmctl dump: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println(string(pretty))
		return subcommands.ExitSuccess
	}

	prior, err := os.ReadFile(c.patch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl dump: %v\n", err)
		return subcommands.ExitFailure
	}
	ops, err := jsonpatch.CreatePatch(prior, next)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl dump: computing patch: %v\n", err)
		return subcommands.ExitFailure
	}
	out, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl dump: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(out))
	return subcommands.ExitSuccess
}

// writeSnapshot produces the files dump reads; serveSnapshotRequests calls
// it on each SIGUSR1 a running "start" receives. Kept here since it shares
// Snapshot's JSON shape with dump's own unmarshaling.
func writeSnapshot(path string, snap Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("vmmctl: marshaling snapshot: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

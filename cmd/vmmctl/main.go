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

// Command vmmctl is the host-side control tool spec.md §6 describes as
// the device ABI's counterpart: start a core in-process, request an
// orderly stop, dump its accounting state, and tail its per-PP debug
// ring. It is out of scope for the microkernel core itself (spec.md §1)
// and is specified only by the shape of its verbs; this implementation
// follows the teacher's runsc command-line layout
// (github.com/google/subcommands plus a TOML config file) the way
// _examples/maxnasonov-gvisor's own go.mod pulls in subcommands/toml/
// flock/backoff/console/go-systemd/gocapability/jsonpatch for exactly
// this kind of tool.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&startCommand{}, "")
	subcommands.Register(&stopCommand{}, "")
	subcommands.Register(&dumpCommand{}, "")
	subcommands.Register(&ringCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

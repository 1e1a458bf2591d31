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
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/subcommands"
)

type stopCommand struct {
	configPath string
}

func (*stopCommand) Name() string     { return "stop" }
func (*stopCommand) Synopsis() string { return "ask a running instance to shut down (STOP_VMM)" }
func (*stopCommand) Usage() string {
	return "stop -config <path>\n\n" +
		"Reads the pid a running \"start\" wrote next to its lock file and\n" +
		"sends it SIGTERM, the same signal start's own context cancellation\n" +
		"reacts to.\n"
}

func (c *stopCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "TOML config path (required, must match the running instance's)")
}

func (c *stopCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	pidPath := cfg.LockPath + ".pid"
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl: reading %s: %v (is an instance running?)\n", pidPath, err)
		return subcommands.ExitFailure
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl: %s: %v\n", pidPath, err)
		return subcommands.ExitFailure
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl: pid %d: %v\n", pid, err)
		return subcommands.ExitFailure
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl: signaling pid %d: %v\n", pid, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("vmmctl: sent SIGTERM to pid %d\n", pid)
	return subcommands.ExitSuccess
}

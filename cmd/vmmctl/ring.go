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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/containerd/console"
	"github.com/google/subcommands"
)

// ringCommand tails the file a running "start" (with ring_log set in its
// config) is continuously appending its per-PP debug rings to.
type ringCommand struct {
	follow bool
}

func (*ringCommand) Name() string     { return "ring" }
func (*ringCommand) Synopsis() string { return "print or follow a core's drained debug ring log" }
func (*ringCommand) Usage() string {
	return "ring [-follow] <ring.log>\n\n" +
		"Prints the ring log file's current contents. With -follow, switches\n" +
		"the controlling terminal to raw mode and keeps polling for new\n" +
		"output with exponential backoff until interrupted, like tail -f.\n"
}

func (c *ringCommand) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.follow, "follow", false, "keep polling for new output")
}

func (c *ringCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "vmmctl ring: exactly one ring log file is required")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl ring: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	offset, err := io.Copy(os.Stdout, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmmctl ring: %v\n", err)
		return subcommands.ExitFailure
	}
	if !c.follow {
		return subcommands.ExitSuccess
	}

	// console.Current() panics if stdout isn't a real console (e.g. piped
	// to a file in scripted use), so go through ConsoleFromFile and treat
	// failure as "not a terminal, skip raw mode" rather than a fatal error.
	if cur, err := console.ConsoleFromFile(os.Stdout); err == nil {
		if err := cur.SetRaw(); err == nil {
			defer cur.Reset()
		}
	}

	errNoNewData := errors.New("no new ring output yet")
	for {
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		default:
		}

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 0 // never give up; only ctx cancellation stops the follow loop
		b.MaxInterval = 2 * time.Second

		err := backoff.Retry(func() error {
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			default:
			}
			info, err := file.Stat()
			if err != nil {
				return backoff.Permanent(err)
			}
			if info.Size() <= offset {
				return errNoNewData
			}
			return nil
		}, b)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return subcommands.ExitSuccess
			}
			fmt.Fprintf(os.Stderr, "vmmctl ring: %v\n", err)
			return subcommands.ExitFailure
		}

		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			fmt.Fprintf(os.Stderr, "vmmctl ring: %v\n", err)
			return subcommands.ExitFailure
		}
		n, err := io.Copy(os.Stdout, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vmmctl ring: %v\n", err)
			return subcommands.ExitFailure
		}
		offset += n
	}
}

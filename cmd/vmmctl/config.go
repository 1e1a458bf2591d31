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

	"github.com/BurntSushi/toml"
)

// Config is vmmctl's own configuration, read once at "start" time. It is
// host-tooling config, distinct from mkargs.Args: Config describes how
// vmmctl should bring the core up; mkargs.Args is what the core actually
// receives as its loader handoff block.
type Config struct {
	ExtensionPath string `toml:"extension_path"`
	OnlinePPs     int    `toml:"online_pps"`
	Backend       string `toml:"backend"` // "intel" or "amd"

	PagePoolFrames int `toml:"page_pool_frames"`
	HugePoolFrames int `toml:"huge_pool_frames"`

	DebugRingPages int     `toml:"debug_ring_pages"`
	DebugRingRPS   float64 `toml:"debug_ring_rps"`
	DebugRingBurst int     `toml:"debug_ring_burst"`
	VMExitLogDepth int     `toml:"vmexit_log_depth"`

	ExtStackSize uint64 `toml:"ext_stack_size"`
	ExtTLSSize   uint64 `toml:"ext_tls_size"`

	LockPath     string `toml:"lock_path"`
	RingLog      string `toml:"ring_log"`
	SnapshotPath string `toml:"snapshot_path"`
}

func defaultConfig() Config {
	return Config{
		OnlinePPs:      1,
		Backend:        "intel",
		PagePoolFrames: 4096,
		HugePoolFrames: 256,
		DebugRingPages: 4,
		DebugRingRPS:   1000,
		DebugRingBurst: 64,
		VMExitLogDepth: 256,
		ExtStackSize:   0x4000,
		ExtTLSSize:     0x1000,
		LockPath:       "/run/vmmctl.lock",
	}
}

// loadConfig reads path over defaultConfig()'s values, mirroring the
// teacher's own direct dependency on BurntSushi/toml for tool config.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("vmmctl: reading config %s: %w", path, err)
	}
	if cfg.ExtensionPath == "" {
		return Config{}, fmt.Errorf("vmmctl: config %s: extension_path is required", path)
	}
	return cfg, nil
}

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
	"os"
	"path/filepath"
	"testing"

	"github.com/bareflank/microkernel/pkg/vsregs"
)

func TestLoadConfigRequiresExtensionPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmmctl.toml")
	if err := os.WriteFile(path, []byte("online_pps = 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("loadConfig with no extension_path = nil error, want one")
	}
}

func TestLoadConfigAppliesDefaultsOverTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmmctl.toml")
	contents := "extension_path = \"/tmp/ext.elf\"\nonline_pps = 4\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.OnlinePPs != 4 {
		t.Fatalf("OnlinePPs = %d, want 4 (from file)", cfg.OnlinePPs)
	}
	if cfg.Backend != "intel" {
		t.Fatalf("Backend = %q, want default %q", cfg.Backend, "intel")
	}
	if cfg.PagePoolFrames != defaultConfig().PagePoolFrames {
		t.Fatalf("PagePoolFrames = %d, want untouched default %d", cfg.PagePoolFrames, defaultConfig().PagePoolFrames)
	}
}

func TestBuildArgsReadsExtensionAndBackend(t *testing.T) {
	dir := t.TempDir()
	extPath := filepath.Join(dir, "ext.elf")
	payload := []byte{0x7f, 'E', 'L', 'F', 1, 2, 3, 4}
	if err := os.WriteFile(extPath, payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := defaultConfig()
	cfg.ExtensionPath = extPath
	cfg.Backend = "amd"
	cfg.OnlinePPs = 2

	args, err := buildArgs(cfg)
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	if string(args.ExtELF) != string(payload) {
		t.Fatalf("ExtELF = %v, want %v", args.ExtELF, payload)
	}
	if len(args.ExtBacking) != len(payload) {
		t.Fatalf("ExtBacking len = %d, want %d", len(args.ExtBacking), len(payload))
	}
	if args.Backend != vsregs.BackendAMD {
		t.Fatalf("Backend = %v, want BackendAMD", args.Backend)
	}
	if args.OnlinePPs != 2 {
		t.Fatalf("OnlinePPs = %d, want 2", args.OnlinePPs)
	}
}

func TestBuildArgsRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	extPath := filepath.Join(dir, "ext.elf")
	if err := os.WriteFile(extPath, []byte{0x7f}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := defaultConfig()
	cfg.ExtensionPath = extPath
	cfg.Backend = "sparc"
	if _, err := buildArgs(cfg); err == nil {
		t.Fatalf("buildArgs with unknown backend = nil error, want one")
	}
}

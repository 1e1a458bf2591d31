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

// Package ext implements ext_t / ext_pool_t (spec.md §3, §6): the single
// extension image per build, its loaded memory, registered callback
// entry points, and a Handle field that pkg/handleop does not fill in (it
// keeps the handle issued by handle_op_open_handle itself). Basic ELF
// verification follows spec.md §6: PT_LOAD segments inside the extension
// virtual range, no relocations requiring runtime fixups, BSS zeroed.
package ext

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/mohae/deepcopy"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

// Image is one loaded extension: its backing memory and the entry
// points it registered via the callback-registration syscalls
// (spec.md §3: "main, bootstrap, vmexit, fail").
type Image struct {
	LoadBase  uint64
	ImageSize uint64
	Backing   []byte // simulated loaded memory, ImageSize bytes

	Start     uint64 // discovered from the ELF entry point, not registered
	Bootstrap uint64
	VMExit    uint64
	Fail      uint64

	Handle ident.ID // left at ident.Invalid by loadELF; pkg/handleop tracks issued handles itself

	bootstrapSet bool
	vmexitSet    bool
	failSet      bool
}

// Descriptor is the metadata Image exposes to DUMP_VMM (spec.md §6:
// "device ABI to vmmctl ... DUMP_VMM ... kernel-image and extension-image
// memory"). It reuses the OCI runtime-spec Spec shape purely as a
// convenient, already-imported typed container for free-form metadata —
// none of its container-runtime semantics apply here.
type Descriptor specs.Spec

func (img *Image) descriptor() Descriptor {
	return Descriptor{
		Version: "bareflank-ext/1",
		Annotations: map[string]string{
			"load_base":  fmt.Sprintf("%#x", img.LoadBase),
			"image_size": fmt.Sprintf("%#x", img.ImageSize),
			"start":      fmt.Sprintf("%#x", img.Start),
			"bootstrap":  fmt.Sprintf("%#x", img.Bootstrap),
			"vmexit":     fmt.Sprintf("%#x", img.VMExit),
			"fail":       fmt.Sprintf("%#x", img.Fail),
		},
	}
}

// loadELF parses r as an extension image and verifies it against
// spec.md §6, zeroing backing's BSS range in place. It does not relocate
// or execute anything; pkg/boot is responsible for actually placing
// Backing at LoadBase in the extension's RPT.
func loadELF(r io.ReaderAt, loadBase uint64, backing []byte) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mkerrors.ErrELFVerification, err)
	}
	defer f.Close()

	if f.Type != elf.ET_DYN {
		return nil, fmt.Errorf("%w: not a position-independent executable (ET_DYN)", mkerrors.ErrELFVerification)
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("%w: unsupported machine %v", mkerrors.ErrELFVerification, f.Machine)
	}

	var segs []segment
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, segment{vaddr: p.Vaddr, memsz: p.Memsz, filesz: p.Filesz})
	}
	if err := verifyLoadSegments(segs, loadBase, uint64(len(backing))); err != nil {
		return nil, err
	}

	var relocs []rela
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", mkerrors.ErrELFVerification, sec.Name, err)
		}
		const entSize = 24 // Elf64_Rela: Offset, Info, Addend, each 8 bytes
		for off := 0; off+entSize <= len(data); off += entSize {
			relocs = append(relocs, rela{
				offset: binary.LittleEndian.Uint64(data[off : off+8]),
				info:   binary.LittleEndian.Uint64(data[off+8 : off+16]),
				addend: binary.LittleEndian.Uint64(data[off+16 : off+24]),
			})
		}
	}
	if err := verifyRelocations(relocs); err != nil {
		return nil, err
	}

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_NOBITS || sec.Addr == 0 {
			continue
		}
		if err := zeroBSS(backing, sec.Addr-loadBase, sec.Size); err != nil {
			return nil, err
		}
	}

	return &Image{LoadBase: loadBase, ImageSize: uint64(len(backing)), Backing: backing, Start: f.Entry, Handle: ident.Invalid}, nil
}

// RegisterBootstrap, RegisterVMExit and RegisterFail back the three
// distinct callback_op_register_{bootstrap,vmexit,fail} syscalls
// (spec.md §4.5). Each may be issued at most once; _start itself is
// discovered from the ELF entry point at load time, not registered.
func (img *Image) RegisterBootstrap(ip uint64) error {
	if img.bootstrapSet {
		return fmt.Errorf("%w: bootstrap callback already registered", mkerrors.ErrProtocolViolation)
	}
	img.Bootstrap = ip
	img.bootstrapSet = true
	return nil
}

func (img *Image) RegisterVMExit(ip uint64) error {
	if img.vmexitSet {
		return fmt.Errorf("%w: vmexit callback already registered", mkerrors.ErrProtocolViolation)
	}
	img.VMExit = ip
	img.vmexitSet = true
	return nil
}

func (img *Image) RegisterFail(ip uint64) error {
	if img.failSet {
		return fmt.Errorf("%w: fail callback already registered", mkerrors.ErrProtocolViolation)
	}
	img.Fail = ip
	img.failSet = true
	return nil
}

// RegisterCallbacks is a convenience wrapper that issues all three
// registrations in one call. pkg/boot does not use it; it wires its Go
// callbacks through dispatch.Dispatcher.SetCallbacks instead.
func (img *Image) RegisterCallbacks(bootstrap, vmexit, fail uint64) error {
	if err := img.RegisterBootstrap(bootstrap); err != nil {
		return err
	}
	if err := img.RegisterVMExit(vmexit); err != nil {
		return err
	}
	return img.RegisterFail(fail)
}

// Pool is ext_pool_t. spec.md §3 fixes it at exactly one extension per
// build (ident.MaxExts == 1); Create fails once occupied.
type Pool struct {
	mu    sync.Mutex
	image *Image
}

// NewPool creates an empty ext_pool_t.
func NewPool() *Pool { return &Pool{} }

// Create loads and verifies the single extension image. Fails with
// ErrPoolExhausted if an extension has already been loaded.
func (p *Pool) Create(r io.ReaderAt, loadBase uint64, backing []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.image != nil {
		return mkerrors.ErrPoolExhausted
	}
	img, err := loadELF(r, loadBase, backing)
	if err != nil {
		return err
	}
	p.image = img
	return nil
}

// Get returns the loaded extension image, or ErrNotOwned if none has
// been loaded yet.
func (p *Pool) Get() (*Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.image == nil {
		return nil, mkerrors.ErrNotOwned
	}
	return p.image, nil
}

// Dump returns a deep copy of the loaded image's metadata, safe for the
// caller to retain across the ioctl/DUMP_VMM boundary without aliasing
// ext_pool's internal state (spec.md §3 ownership rule: "no long-lived
// pointers cross the syscall boundary" — the same discipline applied to
// the host-facing debug surface).
func (p *Pool) Dump() (Descriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.image == nil {
		return Descriptor{}, mkerrors.ErrNotOwned
	}
	d := p.image.descriptor()
	return deepcopy.Copy(d).(Descriptor), nil
}

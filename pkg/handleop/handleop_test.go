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

package handleop

import (
	"errors"
	"sync"
	"testing"

	"github.com/bareflank/microkernel/pkg/ident"
	"github.com/bareflank/microkernel/pkg/mkerrors"
)

func TestOpenWithExactRequiredBit(t *testing.T) {
	p := NewPool()
	h, err := p.Open(SupportedVersions)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !p.Valid(h) {
		t.Fatalf("Valid(%d) = false, want true", h)
	}
}

func TestOpenMissingRequiredBitRejected(t *testing.T) {
	p := NewPool()
	if _, err := p.Open(0x4); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("Open(0x4) = %v, want ErrUnsupported", err)
	}
}

func TestOpenSupersetBitmapRejected(t *testing.T) {
	p := NewPool()
	if _, err := p.Open(SupportedVersions | 0x4); !errors.Is(err, mkerrors.ErrUnsupported) {
		t.Fatalf("Open(superset) = %v, want ErrUnsupported", err)
	}
}

func TestOpenTwiceFails(t *testing.T) {
	p := NewPool()
	if _, err := p.Open(SupportedVersions); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.Open(SupportedVersions); !errors.Is(err, mkerrors.ErrPoolExhausted) {
		t.Fatalf("Open (second) = %v, want ErrPoolExhausted", err)
	}
}

func TestCloseThenReopen(t *testing.T) {
	p := NewPool()
	h, err := p.Open(SupportedVersions)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Valid(h) {
		t.Fatalf("Valid(%d) after Close = true, want false", h)
	}
	if _, err := p.Open(SupportedVersions); err != nil {
		t.Fatalf("Open (after close): %v", err)
	}
}

func TestCloseWrongHandleFails(t *testing.T) {
	p := NewPool()
	if _, err := p.Open(SupportedVersions); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Close(ident.ID(7)); !errors.Is(err, mkerrors.ErrNotOwned) {
		t.Fatalf("Close(wrong handle) = %v, want ErrNotOwned", err)
	}
}

func TestValidRejectsUnopened(t *testing.T) {
	p := NewPool()
	if p.Valid(ident.ID(0)) {
		t.Fatalf("Valid(0) on unopened pool = true, want false")
	}
}

func TestConcurrentOpensCollapseToOneWinner(t *testing.T) {
	p := NewPool()
	const n = 8
	var wg sync.WaitGroup
	oks := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := p.Open(SupportedVersions); err == nil {
				oks[i] = true
			}
		}(i)
	}
	wg.Wait()
	var winners int
	for _, ok := range oks {
		if ok {
			winners++
		}
	}
	if winners == 0 {
		t.Fatalf("no concurrent Open call succeeded")
	}
}

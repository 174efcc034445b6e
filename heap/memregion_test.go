// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "testing"

func TestMemRegionExtend(t *testing.T) {
	r := NewMemRegion()
	if g, e := r.Low(), int64(0); g != e {
		t.Fatalf("Low() = %d, want %d", g, e)
	}

	if g, e := r.High(), int64(-1); g != e {
		t.Fatalf("High() = %d, want %d", g, e)
	}

	base, err := r.Extend(16)
	if err != nil {
		t.Fatal(err)
	}

	if g, e := base, int64(0); g != e {
		t.Fatalf("base = %d, want %d", g, e)
	}

	if g, e := r.High(), int64(15); g != e {
		t.Fatalf("High() = %d, want %d", g, e)
	}

	base2, err := r.Extend(8)
	if err != nil {
		t.Fatal(err)
	}

	if g, e := base2, int64(16); g != e {
		t.Fatalf("base2 = %d, want %d", g, e)
	}
}

func TestMemRegionWordRoundTrip(t *testing.T) {
	r := NewMemRegion()
	if _, err := r.Extend(16); err != nil {
		t.Fatal(err)
	}

	r.WriteWord(4, 0xdeadbeef)
	if g, e := r.ReadWord(4), uint32(0xdeadbeef); g != e {
		t.Fatalf("ReadWord = %#x, want %#x", g, e)
	}
}

func TestMemRegionBulkRoundTrip(t *testing.T) {
	r := NewMemRegion()
	if _, err := r.Extend(32); err != nil {
		t.Fatal(err)
	}

	src := []byte("0123456789abcdef")
	r.WriteAt(src, 8)
	dst := make([]byte, len(src))
	r.ReadAt(dst, 8)
	if string(dst) != string(src) {
		t.Fatalf("ReadAt = %q, want %q", dst, src)
	}
}

func TestMemRegionExtendNegative(t *testing.T) {
	r := NewMemRegion()
	if _, err := r.Extend(-1); err == nil {
		t.Fatal("expected error for negative Extend")
	}
}

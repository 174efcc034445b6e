// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valloc

import (
	"testing"

	"github.com/go-valloc/valloc/heap"
)

func TestBucketIndex(t *testing.T) {
	table := []struct{ size int64; want int }{
		{1, 0},
		{8, 0},
		{15, 0},
		{16, 1},
		{31, 1},
		{32, 2},
		{1 << 20, 17},
		{1 << 30, NumBuckets - 1},
	}
	for _, e := range table {
		if g := bucketIndex(e.size); g != e.want {
			t.Errorf("bucketIndex(%d) = %d, want %d", e.size, g, e.want)
		}
	}
}

func newTestFreeList(t *testing.T) (*heap.MemRegion, *freeList) {
	t.Helper()
	r := heap.NewMemRegion()
	base, err := r.Extend(NumBuckets * WordSize)
	if err != nil {
		t.Fatal(err)
	}

	return r, newFreeList(r, base)
}

// makeFreeBlock allocates raw region space for a free block of the
// given size and writes its free tags, without touching the list.
func makeFreeBlock(t *testing.T, r *heap.MemRegion, size int64) int64 {
	t.Helper()
	base, err := r.Extend(size + Overhead)
	if err != nil {
		t.Fatal(err)
	}

	r.WriteWord(base+4, uint32(size))
	r.WriteWord(base+size+12, uint32(size))
	return base
}

func TestFreeListInsertSingle(t *testing.T) {
	r, fl := newTestFreeList(t)
	base := makeFreeBlock(t, r, 32)
	fl.insert(base, 32)

	if !fl.contains(base, 32) {
		t.Fatal("expected block to be present after insert")
	}

	idx := bucketIndex(32)
	if g, e := fl.head(idx), nextSlot(base); g != e {
		t.Fatalf("head(%d) = %d, want %d", idx, g, e)
	}
}

func TestFreeListInsertRemoveOrder(t *testing.T) {
	r, fl := newTestFreeList(t)
	a := makeFreeBlock(t, r, 32)
	b := makeFreeBlock(t, r, 32)
	c := makeFreeBlock(t, r, 32)

	fl.insert(a, 32)
	fl.insert(b, 32)
	fl.insert(c, 32)

	for _, base := range []int64{a, b, c} {
		if !fl.contains(base, 32) {
			t.Fatalf("block at %d missing after inserts", base)
		}
	}

	// Remove the middle-inserted entry (b) first, then the head (c),
	// then the tail (a), exercising all three unlink shapes.
	fl.removeAt(b)
	if fl.contains(b, 32) {
		t.Fatal("b still present after removeAt(b)")
	}
	if !fl.contains(a, 32) || !fl.contains(c, 32) {
		t.Fatal("removing b disturbed a or c")
	}

	fl.removeAt(c)
	if fl.contains(c, 32) {
		t.Fatal("c still present after removeAt(c)")
	}
	if !fl.contains(a, 32) {
		t.Fatal("removing c disturbed a")
	}

	fl.removeAt(a)
	if fl.contains(a, 32) {
		t.Fatal("a still present after removeAt(a)")
	}

	idx := bucketIndex(32)
	if g := fl.head(idx); g != 0 {
		t.Fatalf("head(%d) = %d, want 0 after draining bucket", idx, g)
	}
}

func TestFreeListSeparateBuckets(t *testing.T) {
	r, fl := newTestFreeList(t)
	small := makeFreeBlock(t, r, 16)
	big := makeFreeBlock(t, r, 4096)

	fl.insert(small, 16)
	fl.insert(big, 4096)

	if bucketIndex(16) == bucketIndex(4096) {
		t.Fatal("test fixture expects different buckets")
	}

	if !fl.contains(small, 16) || !fl.contains(big, 4096) {
		t.Fatal("expected both blocks reachable through their own buckets")
	}
}

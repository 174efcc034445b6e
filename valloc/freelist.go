// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valloc

import (
	"math/bits"

	"github.com/go-valloc/valloc/heap"
)

// freeList is the segregated free-list index: NumBuckets head cells,
// each the root of a doubly linked list of free blocks whose payload
// size falls in that bucket's size class. It occupies the Index zone,
// the fixed prefix of the Region established once by New.
//
// freeList plays the role lldb's flt type plays for Allocator, reduced
// to one concrete bucketing scheme (power-of-two classes keyed by the
// position of a size's highest set bit) rather than lldb's pluggable
// FLT interface — there is exactly one Index zone layout here, not a
// choice between FLTPowersOf2/FLTFib/FLTFull.
type freeList struct {
	r    heap.Region
	base int64 // address of head cell 0
}

func newFreeList(r heap.Region, base int64) *freeList {
	return &freeList{r: r, base: base}
}

// bucketIndex returns the bucket a free payload of the given size
// belongs in: floor(log2(size)) - 3, clamped to [0, NumBuckets-1].
// size must be > 0.
func bucketIndex(size int64) int {
	idx := bits.Len64(uint64(size)) - 4
	switch {
	case idx < 0:
		return 0
	case idx > NumBuckets-1:
		return NumBuckets - 1
	default:
		return idx
	}
}

func (fl *freeList) headAddr(i int) int64 { return fl.base + int64(i)*WordSize }

// head returns the "next slot" address of the first entry of bucket i,
// or 0 if the bucket is empty.
func (fl *freeList) head(i int) int64 {
	return int64(fl.r.ReadWord(fl.headAddr(i)))
}

func (fl *freeList) setHead(i int, v int64) {
	fl.r.WriteWord(fl.headAddr(i), uint32(v))
}

// insert links the free block with the given base address and payload
// size at the head of its bucket's list.
func (fl *freeList) insert(base, size int64) {
	idx := bucketIndex(size)
	oldHead := fl.head(idx)
	ns := nextSlot(base)

	fl.r.WriteWord(ns, uint32(oldHead))
	fl.r.WriteWord(prevSlot(base), uint32(fl.headAddr(idx)))
	if oldHead != 0 {
		// oldHead is the next-slot address of the block that used to
		// be first; its prev slot (oldHead-4) must now point at this
		// block's next slot instead of at the bucket head cell.
		fl.r.WriteWord(oldHead-4, uint32(ns))
	}

	fl.setHead(idx, ns)
}

// remove unlinks the free block whose "next" slot is at address n. The
// caller supplies n (not the block's base) because that is exactly
// what list traversal and Allocator bookkeeping already have in hand,
// and because the update is branch-free on the predecessor side: the
// location to patch — another block's next slot, or a bucket head cell
// — is read out of the victim's own prev slot without needing to know
// which kind it is.
func (fl *freeList) remove(n int64) {
	target := int64(fl.r.ReadWord(n - 4))   // victim's prev slot value
	succNext := int64(fl.r.ReadWord(n))     // victim's next slot value
	if succNext != 0 {
		fl.r.WriteWord(succNext-4, uint32(target))
	}

	fl.r.WriteWord(target, uint32(succNext))
}

// removeAt is a convenience wrapper for callers that have a block's
// base address rather than its next-slot address.
func (fl *freeList) removeAt(base int64) {
	fl.remove(nextSlot(base))
}

// contains reports whether the free block at base appears in the
// bucket list selected by its own size. It is used only by Check.
func (fl *freeList) contains(base, size int64) bool {
	idx := bucketIndex(size)
	want := nextSlot(base)
	for cur := fl.head(idx); cur != 0; cur = int64(fl.r.ReadWord(cur)) {
		if cur == want {
			return true
		}
	}

	return false
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valloc

import (
	"github.com/cznic/mathutil"
	"github.com/go-valloc/valloc/heap"
)

// An Allocator manages variable sized byte blocks over a heap.Region:
// the Index zone (NumBuckets free-list heads) is reserved once at
// construction, and the remainder of the Region — the user zone — is a
// sequence of contiguous, boundary-tagged blocks.
//
// An Allocator holds all of its bookkeeping state (the user-zone low
// water mark and the small-block primer counter) in the struct rather
// than as package globals, so a process can run more than one
// independent heap. It is not safe for concurrent use: exactly one
// goroutine may call into an Allocator at a time, and none of its
// methods may be called reentrantly except via the small-block primer,
// which recurses into Allocate/Free before its own call returns to the
// client.
type Allocator struct {
	region      heap.Region
	fl          *freeList
	userZoneLow int64

	primerCount int
}

// New reserves the Index zone at the low end of r and returns an
// Allocator ready to serve requests. r MUST be freshly created (Low()
// == High()+1, i.e. empty); New does not support attaching to a
// previously used Region.
func New(r heap.Region) (*Allocator, error) {
	base, err := r.Extend(NumBuckets * WordSize)
	if err != nil {
		return nil, &ErrOOM{Requested: NumBuckets * WordSize, Err: err}
	}

	a := &Allocator{
		region:      r,
		userZoneLow: base + NumBuckets*WordSize,
	}
	a.fl = newFreeList(r, base)
	return a, nil
}

// Allocate reserves space for a payload of n bytes and returns the
// user pointer to it, or an error if the Region could not grow to
// satisfy the request. The returned pointer is valid until it is
// passed to Free or to Reallocate as the old pointer.
func (a *Allocator) Allocate(n int64) (int64, error) {
	if n < 0 {
		return 0, &ErrINVAL{"Allocator.Allocate: negative size", n}
	}

	payload := alignUp(n)
	a.primeSmall(payload)

	base, err := a.place(payload)
	if err != nil {
		return 0, err
	}

	a.setUsed(base, payload)
	return userPtrOf(base), nil
}

// primeSmall implements the small-block primer: every 4th small request
// (footprint <= 32) or every 6th small-ish request (footprint <= 80),
// and on the very first request of either tier, it recursively
// allocates and immediately frees a larger aggregate to seed the
// corresponding bucket ahead of the anticipated stream. The counter
// resets to 1, not 0, after priming so the next ordinary request isn't
// miscounted as the "first" one again.
func (a *Allocator) primeSmall(payload int64) {
	footprint := payload + Overhead
	switch {
	case footprint <= 32:
		if a.primerCount == 0 || a.primerCount == 4 {
			a.primeOnce(payload*4 + 48)
			a.primerCount = 1
			return
		}

		a.primerCount++
	case footprint <= 80:
		if a.primerCount == 0 || a.primerCount == 6 {
			a.primeOnce(payload*6 + 80)
			a.primerCount = 1
			return
		}

		a.primerCount++
	}
}

func (a *Allocator) primeOnce(size int64) {
	p, err := a.Allocate(size)
	if err != nil {
		// Priming is a heuristic, not a correctness requirement; if the
		// Region can't grow for it now it surely can't for the real
		// request either, which will fail on its own and report it.
		return
	}

	a.Free(p)
}

// place runs the placement search/grow logic for a payload already
// rounded up to Align, and returns the base
// address of a block at least big enough to hold it. The returned
// block is still tagged free; setUsed finalizes it.
func (a *Allocator) place(payload int64) (int64, error) {
	for idx := bucketIndex(payload); idx < NumBuckets; idx++ {
		for cur := a.fl.head(idx); cur != 0; cur = int64(a.region.ReadWord(cur)) {
			base := baseFromNextSlot(cur)
			size := sizeOf(a.region.ReadWord(base + 4))

			switch {
			case size == payload:
				a.fl.remove(cur)
				return base, nil
			case size-payload >= Overhead:
				a.fl.remove(cur)
				remBase := base + payload + Overhead
				remSize := size - payload - Overhead
				a.setFree(remBase, remSize)
				a.fl.insert(remBase, remSize)
				return base, nil
			}
		}
	}

	base, err := a.region.Extend(payload + Overhead)
	if err != nil {
		return 0, &ErrOOM{Requested: payload + Overhead, Err: err}
	}

	return base, nil
}

// setUsed writes an allocated header and footer of the given payload
// size at base.
func (a *Allocator) setUsed(base, size int64) {
	tag := makeAllocated(size)
	a.region.WriteWord(base+4, tag)
	a.region.WriteWord(base+size+12, tag)
}

// setFree writes a free header and footer of the given payload size at
// base, clearing the alloc bit.
func (a *Allocator) setFree(base, size int64) {
	tag := uint32(size)
	a.region.WriteWord(base+4, tag)
	a.region.WriteWord(base+size+12, tag)
}

// Free releases the block pointed to by p. p must have been returned
// by Allocate or Reallocate and not already freed; passing any other
// value, including 0, is undefined behavior, matching the allocator's
// single-threaded, unchecked-double-free contract.
func (a *Allocator) Free(p int64) {
	base := baseOf(p)
	size := sizeOf(a.region.ReadWord(base + 4))
	tag := makeFree(makeAllocated(size))
	a.region.WriteWord(base+4, tag)
	a.region.WriteWord(base+size+12, tag)
	a.coalesce(base, size)
}

// coalesce merges the just-freed block at base with any adjacent free
// neighbors, then inserts (or re-inserts) the resulting block into the
// Free List Index. It never shrinks the region on its own; freeing the
// heap's tail block keeps it as an ordinary free block (unlike lldb's
// Truncate-the-tail behavior on its own Free).
func (a *Allocator) coalesce(base, size int64) {
	low, high := a.extentAfterCoalesce(base, size)
	a.setFree(low, high-low-Overhead)
	a.fl.insert(low, high-low-Overhead)
}

// extentAfterCoalesce walks backward and forward from the block at
// (base, size), unlinking every adjacent free neighbor it finds from
// the free list, and returns the base address of the leftmost merged
// block and the address one past the rightmost merged block's end.
func (a *Allocator) extentAfterCoalesce(base, size int64) (low, high int64) {
	low = base
	for {
		pf := prevBlockFooter(low)
		if pf < a.userZoneLow {
			break
		}

		tag := a.region.ReadWord(pf)
		if isAllocated(tag) {
			break
		}

		s := sizeOf(tag)
		predBase := pf - s - 12
		a.fl.removeAt(predBase)
		low = predBase
	}

	high = nextBlockBase(base, size)
	for high <= a.region.High() {
		hdr := high + 4
		tag := a.region.ReadWord(hdr)
		if isAllocated(tag) {
			break
		}

		s := sizeOf(tag)
		a.fl.removeAt(high)
		high = nextBlockBase(high, s)
	}

	return low, high
}

// Reallocate resizes the block pointed to by p to n bytes: p == 0
// allocates, n == 0 frees, and otherwise the block is shrunk in place,
// extended at the heap tail, extended by symmetric coalescing with free
// neighbors, or — failing all of those — relocated via a fresh
// allocation and copy. Reallocate never returns a stale pointer:
// every path that keeps p returns p, and every path that must move the
// payload returns the new location.
func (a *Allocator) Reallocate(p int64, n int64) (int64, error) {
	if p == 0 {
		return a.Allocate(n)
	}

	if n == 0 {
		a.Free(p)
		return 0, nil
	}

	if n < 0 {
		return 0, &ErrINVAL{"Allocator.Reallocate: negative size", n}
	}

	base := baseOf(p)
	old := sizeOf(a.region.ReadWord(base + 4))
	newSize := alignUp(n)

	switch {
	case old == newSize:
		return p, nil
	case old >= newSize+Overhead:
		a.setUsed(base, newSize)
		tailBase := base + newSize + Overhead
		tailSize := old - newSize - Overhead
		a.coalesce(tailBase, tailSize)
		return p, nil
	case old < newSize && a.isTail(base, old):
		if _, err := a.region.Extend(newSize - old); err != nil {
			return 0, &ErrOOM{Requested: newSize - old, Err: err}
		}

		a.setUsed(base, newSize)
		return p, nil
	}

	if newBase, ok := a.reallocCoalesce(base, old, newSize); ok {
		if newBase != base {
			a.copyPayload(userPtrOf(newBase), p, mathutil.MinInt64(old, newSize))
		}

		return userPtrOf(newBase), nil
	}

	newP, err := a.Allocate(n)
	if err != nil {
		return 0, err
	}

	a.copyPayload(newP, p, mathutil.MinInt64(old, newSize))
	a.Free(p)
	return newP, nil
}

// isTail reports whether the block at (base, size) is the last block
// in the heap, i.e. its footer is the last valid byte of the Region.
func (a *Allocator) isTail(base, size int64) bool {
	return base+size+15 == a.region.High()
}

// reallocCoalesce first probes, without mutating anything, how far
// backward and then forward the block at (base, old) could grow by
// consuming free neighbors; only if that probe reaches newSize does it
// go back and actually unlink every neighbor it walked over. This
// two-phase shape guarantees a failed attempt leaves the heap
// untouched, and the forward probe always advances from its current
// cursor rather than recomputing from the original block, so no free
// neighbor is ever visited twice.
func (a *Allocator) reallocCoalesce(base, old, newSize int64) (newBase int64, ok bool) {
	satisfied := func(total int64) bool { return total == newSize || total >= newSize+Overhead }

	total := old
	low := base
	for !satisfied(total) {
		pf := prevBlockFooter(low)
		if pf < a.userZoneLow {
			break
		}

		tag := a.region.ReadWord(pf)
		if isAllocated(tag) {
			break
		}

		s := sizeOf(tag)
		low = pf - s - 12
		total += s + Overhead
	}

	high := nextBlockBase(base, old)
	for !satisfied(total) {
		if high > a.region.High() {
			break
		}

		tag := a.region.ReadWord(high + 4)
		if isAllocated(tag) {
			break
		}

		s := sizeOf(tag)
		total += s + Overhead
		high = nextBlockBase(high, s)
	}

	if !satisfied(total) {
		return 0, false
	}

	for cur := base; cur != low; {
		pf := prevBlockFooter(cur)
		s := sizeOf(a.region.ReadWord(pf))
		predBase := pf - s - 12
		a.fl.removeAt(predBase)
		cur = predBase
	}

	for cur := nextBlockBase(base, old); cur != high; {
		s := sizeOf(a.region.ReadWord(cur + 4))
		a.fl.removeAt(cur)
		cur = nextBlockBase(cur, s)
	}

	if low != base {
		a.copyPayload(userPtrOf(low), userPtrOf(base), mathutil.MinInt64(old, newSize))
	}

	a.setUsed(low, newSize)
	if total > newSize {
		tailBase := low + newSize + Overhead
		tailSize := total - newSize - Overhead
		a.coalesce(tailBase, tailSize)
	}

	return low, true
}

// copyPayload copies n bytes from the payload at srcUser to the
// payload at dstUser. It goes through an intermediate buffer so the
// copy is correct regardless of whether the two ranges overlap — which
// they do whenever reallocCoalesce shifted the base backward into a
// swallowed predecessor.
func (a *Allocator) copyPayload(dstUser, srcUser, n int64) {
	if n <= 0 || dstUser == srcUser {
		return
	}

	buf := make([]byte, n)
	a.region.ReadAt(buf, srcUser)
	a.region.WriteAt(buf, dstUser)
}

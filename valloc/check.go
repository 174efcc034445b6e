// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valloc

// Check audits the heap without mutating it, mirroring lldb's
// Allocator.Verify in shape: a sequential address walk over every
// block from the user zone through the current heap high, followed by
// a walk of every bucket's free list. log, if non-nil, is called with
// every violation found until it returns false, after which it is not
// called again (the same stop-early contract as lldb's log sink); Check
// itself always finishes both passes and returns true only if no
// violation was found.
func (a *Allocator) Check(log func(error) bool) bool {
	if log == nil {
		log = func(error) bool { return true }
	}

	ok := true
	stopped := false
	report := func(err error) {
		ok = false
		if !stopped && !log(err) {
			// Caller asked to stop; the passes still finish, but no
			// further violation is passed to log.
			stopped = true
		}
	}

	a.checkAddressWalk(report)
	a.checkListWalk(report)
	return ok
}

func (a *Allocator) checkAddressWalk(report func(error)) {
	prevFree := false
	for base := a.userZoneLow; base <= a.region.High(); {
		hdrAddr := base + 4
		hdr := a.region.ReadWord(hdrAddr)
		size := sizeOf(hdr)
		ftrAddr := base + size + 12
		if ftrAddr > a.region.High() {
			report(&ErrILSEQ{Type: ErrOutOfBounds, Addr: base, Arg: size})
			return
		}

		ftr := a.region.ReadWord(ftrAddr)
		if hdr != ftr {
			report(&ErrILSEQ{Type: ErrHeaderFooterMismatch, Addr: base, Arg: [2]uint32{hdr, ftr}})
		}

		free := !isAllocated(hdr)
		if free {
			if prevFree {
				report(&ErrILSEQ{Type: ErrAdjacentFree, Addr: base})
			}

			if !a.fl.contains(base, size) {
				report(&ErrILSEQ{Type: ErrNotInFreeList, Addr: base, Arg: size})
			}
		}

		prevFree = free
		base = nextBlockBase(base, size)
	}
}

func (a *Allocator) checkListWalk(report func(error)) {
	for i := 0; i < NumBuckets; i++ {
		for cur := a.fl.head(i); cur != 0; cur = int64(a.region.ReadWord(cur)) {
			base := baseFromNextSlot(cur)
			hdr := a.region.ReadWord(base + 4)
			if isAllocated(hdr) {
				report(&ErrILSEQ{Type: ErrAllocBitInFreeList, Addr: base, Arg: i})
			}
		}
	}
}

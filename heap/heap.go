// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap abstracts the contiguous, monotonically-extendable byte
// range a valloc.Allocator manages. It plays the role lldb.Filer plays
// for the allocator in that package: valloc never touches an operating
// system file, a network socket or a raw mmap directly, it only ever
// talks to a Region.
package heap

// A Region is a single contiguous byte range with a fixed low bound and
// a high bound that only ever grows. Shrinking is not supported; the
// allocator that owns a Region is the only writer and is not safe for
// concurrent use, exactly as a Region is not required to be either.
//
// Low, High and Extend model acquisition and growth of the underlying
// address range; they are the allocator's only way to learn about or
// change the size of the region. ReadWord/WriteWord and ReadAt/WriteAt
// are the allocator's only way to inspect or mutate its content — a
// Region is addressed, like a Filer, rather than streamed.
type Region interface {
	// Low returns the fixed low bound of the region. It never changes
	// after the region is created.
	Low() int64

	// High returns the address of the last valid byte in the region,
	// or Low()-1 if the region is empty.
	High() int64

	// Extend grows the region by n bytes and returns the address of
	// the first new byte (the previous High()+1). The new bytes read
	// as zero. Extend returns an error, leaving the region unchanged,
	// if the growth cannot be satisfied.
	Extend(n int64) (base int64, err error)

	// ReadWord reads the 4-byte big-endian word at off.
	ReadWord(off int64) uint32

	// WriteWord writes the 4-byte big-endian word v at off.
	WriteWord(off int64, v uint32)

	// ReadAt copies len(b) bytes starting at off into b.
	ReadAt(b []byte, off int64)

	// WriteAt copies b into the region starting at off.
	WriteAt(b []byte, off int64)
}

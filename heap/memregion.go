// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"encoding/binary"
	"fmt"
)

var _ Region = (*MemRegion)(nil) // Ensure MemRegion is a Region.

// MemRegion is a Region backed by a process-local byte slice. It is the
// concrete Heap Region used by tests and by any client that does not
// need the address range to be backed by anything more exotic (an
// mmap'd file, a remote memory server, ...) — the allocator itself
// never assumes which.
//
// MemRegion plays the role lldb.MemFiler plays for a Filer: a simple,
// in-memory stand-in good enough to exercise every code path of its
// consumer.
type MemRegion struct {
	buf []byte
}

// NewMemRegion returns an empty MemRegion: Low() == 0, High() == -1.
func NewMemRegion() *MemRegion {
	return &MemRegion{}
}

// Low implements Region.
func (r *MemRegion) Low() int64 { return 0 }

// High implements Region.
func (r *MemRegion) High() int64 { return int64(len(r.buf)) - 1 }

// Extend implements Region.
func (r *MemRegion) Extend(n int64) (base int64, err error) {
	if n < 0 {
		return 0, &ErrINVAL{"MemRegion.Extend: negative size", n}
	}

	base = int64(len(r.buf))
	r.buf = append(r.buf, make([]byte, n)...)
	return base, nil
}

// ReadWord implements Region.
func (r *MemRegion) ReadWord(off int64) uint32 {
	return binary.BigEndian.Uint32(r.buf[off : off+4])
}

// WriteWord implements Region.
func (r *MemRegion) WriteWord(off int64, v uint32) {
	binary.BigEndian.PutUint32(r.buf[off:off+4], v)
}

// ReadAt implements Region.
func (r *MemRegion) ReadAt(b []byte, off int64) {
	copy(b, r.buf[off:off+int64(len(b))])
}

// WriteAt implements Region.
func (r *MemRegion) WriteAt(b []byte, off int64) {
	copy(r.buf[off:off+int64(len(b))], b)
}

// Size reports the current size of the region in bytes. It is a
// MemRegion-specific convenience, not part of Region.
func (r *MemRegion) Size() int64 { return int64(len(r.buf)) }

// ErrINVAL reports an invalid argument passed to a Region method.
type ErrINVAL struct {
	Src string
	Arg interface{}
}

func (e *ErrINVAL) Error() string {
	return fmt.Sprintf("%s: invalid argument %v", e.Src, e.Arg)
}

// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package diskio provides a positioned-read file abstraction generic
// over the address type (physical or logical), so that the same
// interface describes both "a byte offset into the image" and "a
// byte offset into the logical address space".
package diskio

import (
	"fmt"
	"io"
	"os"
)

// File is the interface the core needs from an opened image: no seek
// cursor, so no state is shared between concurrent positioned reads.
type File[A ~int64] interface {
	Size() A
	ReadAt(p []byte, off A) (n int, err error)
}

type assertAddr int64

var _ File[assertAddr] = (*OSFile[assertAddr])(nil)

// OSFile adapts an *os.File, opened read-only, to File.
type OSFile[A ~int64] struct {
	*os.File
}

func (f *OSFile[A]) Size() A {
	fi, err := f.Stat()
	if err != nil {
		return 0
	}
	return A(fi.Size())
}

// ReadAt wraps os.File.ReadAt with the all-or-nothing contract
// spec.md §7 calls "I/O: positioned read fails or short-reads": a
// short read is itself an error (an io.EOF that comes with a
// completely filled buffer is not a short read), never partial data handed
// back silently.
func (f *OSFile[A]) ReadAt(dat []byte, off A) (int, error) {
	n, err := f.File.ReadAt(dat, int64(off))
	if err != nil && !(err == io.EOF && n == len(dat)) {
		return n, fmt.Errorf("short read at offset %v: got %v of %v bytes: %w", off, n, len(dat), err)
	}
	return n, nil
}

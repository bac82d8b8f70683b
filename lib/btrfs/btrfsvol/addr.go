// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol

import "fmt"

// PhysicalAddr is a byte offset into the image.
type PhysicalAddr int64

// LogicalAddr is the 64-bit address used inside tree pointers and
// item keys; it is never a direct file offset and must be translated
// through a ChunkMap before any I/O against it.
type LogicalAddr int64

// AddrDelta is a signed distance between two addresses, or the size
// of an address range.
type AddrDelta int64

func (a LogicalAddr) Add(d AddrDelta) LogicalAddr { return a + LogicalAddr(d) }
func (a LogicalAddr) Sub(b LogicalAddr) AddrDelta  { return AddrDelta(a - b) }

func (a PhysicalAddr) Add(d AddrDelta) PhysicalAddr { return a + PhysicalAddr(d) }

func (a LogicalAddr) String() string  { return fmt.Sprintf("%#016x", int64(a)) }
func (a PhysicalAddr) String() string { return fmt.Sprintf("%#016x", int64(a)) }
func (d AddrDelta) String() string    { return fmt.Sprintf("%#x", int64(d)) }

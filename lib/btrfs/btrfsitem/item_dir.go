// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"fmt"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct/binutil"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
)

// FileType is DirEntry.Type: what kind of inode a directory entry
// names, independent of the INODE_ITEM's own mode bits.
type FileType uint8

const (
	FT_UNKNOWN  = FileType(0)
	FT_REG_FILE = FileType(1)
	FT_DIR      = FileType(2)
	FT_CHRDEV   = FileType(3)
	FT_BLKDEV   = FileType(4)
	FT_FIFO     = FileType(5)
	FT_SOCK     = FileType(6)
	FT_SYMLINK  = FileType(7)
	FT_XATTR    = FileType(8)
)

func (ft FileType) String() string {
	names := map[FileType]string{
		FT_UNKNOWN:  "UNKNOWN",
		FT_REG_FILE: "REG_FILE",
		FT_DIR:      "DIR",
		FT_CHRDEV:   "CHRDEV",
		FT_BLKDEV:   "BLKDEV",
		FT_FIFO:     "FIFO",
		FT_SOCK:     "SOCK",
		FT_SYMLINK:  "SYMLINK",
		FT_XATTR:    "XATTR",
	}
	if name, ok := names[ft]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint8(ft))
}

// DirEntry is the payload of a DIR_ITEM (and, identically shaped, a
// DIR_INDEX or XATTR_ITEM): key.objectid is the inode of the
// directory containing this entry.
type DirEntry struct {
	Location      btrfsprim.Key `bin:"off=0x0,  siz=0x11"`
	TransID       int64         `bin:"off=0x11, siz=0x8"`
	DataLen       uint16        `bin:"off=0x19, siz=0x2"`
	NameLen       uint16        `bin:"off=0x1b, siz=0x2"`
	Type          FileType      `bin:"off=0x1d, siz=0x1"`
	binstruct.End `bin:"off=0x1e"`
	Name          []byte `bin:"-"`
	Data          []byte `bin:"-"`
}

func (o *DirEntry) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 0x1e); err != nil {
		return 0, err
	}
	n, err := binstruct.UnmarshalWithoutInterface(dat, o)
	if err != nil {
		return n, err
	}
	if o.NameLen > MaxNameLen {
		return 0, fmt.Errorf("maximum name len is %v, but .NameLen=%v", MaxNameLen, o.NameLen)
	}
	if err := binutil.NeedNBytes(dat, n+int(o.NameLen)+int(o.DataLen)); err != nil {
		return 0, fmt.Errorf("name+data: %w", err)
	}
	o.Name = dat[n : n+int(o.NameLen)]
	n += int(o.NameLen)
	o.Data = dat[n : n+int(o.DataLen)]
	n += int(o.DataLen)
	return n, nil
}

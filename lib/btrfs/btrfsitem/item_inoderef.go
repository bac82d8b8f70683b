// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"fmt"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct/binutil"
)

const MaxNameLen = 255

// InodeRef is the payload of an INODE_REF: key.objectid is the child
// inode, key.offset is the parent inode, and the trailing bytes are
// the child's basename within that parent.
type InodeRef struct {
	Index         int64  `bin:"off=0x0, siz=0x8"`
	NameLen       uint16 `bin:"off=0x8, siz=0x2"`
	binstruct.End `bin:"off=0xa"`
	Name          []byte `bin:"-"`
}

func (o *InodeRef) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 0xa); err != nil {
		return 0, err
	}
	n, err := binstruct.UnmarshalWithoutInterface(dat, o)
	if err != nil {
		return n, err
	}
	if o.NameLen > MaxNameLen {
		return 0, fmt.Errorf("maximum name len is %v, but .NameLen=%v", MaxNameLen, o.NameLen)
	}
	if err := binutil.NeedNBytes(dat, n+int(o.NameLen)); err != nil {
		return 0, fmt.Errorf("name: %w", err)
	}
	o.Name = dat[n : n+int(o.NameLen)]
	n += int(o.NameLen)
	return n, nil
}

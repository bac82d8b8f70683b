// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// Root is the payload of a ROOT_ITEM: it names the root block of
// another tree. The fields this system doesn't use (everything but
// ByteNr and RootDirID) are still laid out at their exact on-disk
// offsets so the static size check in lib/binstruct catches a
// malformed decode, even though their values are discarded.
type Root struct {
	InodeRaw      [0xa0]byte           `bin:"off=0x000, siz=0xa0"` // embedded INODE_ITEM; unused by this tool
	Generation    btrfsprim.Generation `bin:"off=0x0a0, siz=0x08"`
	RootDirID     btrfsprim.ObjID      `bin:"off=0x0a8, siz=0x08"` // inode number of this subvolume's root directory
	ByteNr        btrfsvol.LogicalAddr `bin:"off=0x0b0, siz=0x08"` // logical address of this tree's root block
	Rest          [0xff]byte           `bin:"off=0x0b8, siz=0xff"`
	binstruct.End `bin:"off=0x1b7"`
}

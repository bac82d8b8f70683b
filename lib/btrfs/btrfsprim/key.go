// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"fmt"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
)

// ItemType names the relation kind of a Key.
type ItemType uint8

const (
	INODE_ITEM_KEY = ItemType(1)
	INODE_REF_KEY  = ItemType(12)
	DIR_ITEM_KEY   = ItemType(84)
	DIR_INDEX_KEY  = ItemType(96)
	ROOT_ITEM_KEY  = ItemType(132)
	CHUNK_ITEM_KEY = ItemType(228)
)

var itemTypeNames = map[ItemType]string{
	INODE_ITEM_KEY: "INODE_ITEM",
	INODE_REF_KEY:  "INODE_REF",
	DIR_ITEM_KEY:   "DIR_ITEM",
	DIR_INDEX_KEY:  "DIR_INDEX",
	ROOT_ITEM_KEY:  "ROOT_ITEM",
	CHUNK_ITEM_KEY: "CHUNK_ITEM",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint8(t))
}

// Generation is an on-disk transaction ID.
type Generation uint64

// Key is the (objectid, type, offset) triple that every tree item is
// filed under, compared lexicographically in that order.
type Key struct {
	ObjectID      ObjID    `bin:"off=0x0, siz=0x8"`
	ItemType      ItemType `bin:"off=0x8, siz=0x1"`
	Offset        uint64   `bin:"off=0x9, siz=0x8"`
	binstruct.End `bin:"off=0x11"`
}

func (k Key) String() string {
	return fmt.Sprintf("{%v %v %v}", k.ObjectID, k.ItemType, k.Offset)
}

// Cmp implements the lexicographic (objectid, type, offset) ordering
// spec.md §3 defines for keys.
func (a Key) Cmp(b Key) int {
	switch {
	case a.ObjectID < b.ObjectID:
		return -1
	case a.ObjectID > b.ObjectID:
		return 1
	}
	switch {
	case a.ItemType < b.ItemType:
		return -1
	case a.ItemType > b.ItemType:
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import "fmt"

// ObjID names an entity within a tree; each tree has its own ObjID
// namespace.
type ObjID uint64

const (
	// ROOT_TREE_OBJECTID holds pointers to all of the other tree roots.
	ROOT_TREE_OBJECTID ObjID = 1
	// CHUNK_TREE_OBJECTID stores translations from logical to
	// physical block numbering.
	CHUNK_TREE_OBJECTID ObjID = 3
	// FS_TREE_OBJECTID is the default (non-snapshot) filesystem
	// tree, one per subvolume.
	FS_TREE_OBJECTID ObjID = 5

	// FIRST_CHUNK_TREE_OBJECTID is the key.objectid every CHUNK_ITEM
	// in the chunk tree (and the superblock's system chunk array) is
	// filed under; the chunk's logical start address is carried in
	// key.offset instead.
	FIRST_CHUNK_TREE_OBJECTID ObjID = 256
)

var objidNames = map[ObjID]string{
	ROOT_TREE_OBJECTID:  "ROOT_TREE",
	CHUNK_TREE_OBJECTID: "CHUNK_TREE",
	FS_TREE_OBJECTID:    "FS_TREE",
}

func (id ObjID) String() string {
	if name, ok := objidNames[id]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint64(id))
}

// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsutil builds the operations spec.md describes on top of
// the raw tree-reading primitives in lib/btrfs: finding the default
// filesystem tree and walking it to reconstruct and print the
// absolute path of every regular file.
package btrfsutil

import (
	"math"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsitem"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// searchItem descends the tree rooted at root looking for an item
// keyed (objID, itemType, *) — any Offset. At each internal node it
// follows the key pointer chosen below (keys compared against
// (objID, itemType, MaxUint64)), so the leaf it reaches holds the
// greatest key with that prefix, and it returns the first matching
// item in that leaf. This is one root-to-leaf descent rather than a
// full tree walk, since path reconstruction does one of these per
// path component.
func searchItem(fs *btrfs.FS, root btrfsvol.LogicalAddr, objID btrfsprim.ObjID, itemType btrfsprim.ItemType) (btrfsprim.Key, btrfsitem.Item, bool, error) {
	searchKey := btrfsprim.Key{ObjectID: objID, ItemType: itemType, Offset: math.MaxUint64}
	addr := root
	for {
		node, err := fs.ReadNode(addr)
		if err != nil {
			return btrfsprim.Key{}, nil, false, err
		}
		if node.Header.Level == 0 {
			for _, item := range node.Items {
				if item.Key.ObjectID == objID && item.Key.ItemType == itemType {
					return item.Key, item.Body, true, nil
				}
			}
			return btrfsprim.Key{}, nil, false, nil
		}
		// Find the rightmost key pointer whose key is <= searchKey;
		// fall back to the first if searchKey precedes them all.
		chosen := node.KeyPointers[0]
		for _, kp := range node.KeyPointers {
			if kp.Key.Cmp(searchKey) <= 0 {
				chosen = kp
			} else {
				break
			}
		}
		addr = chosen.BlockPtr
	}
}

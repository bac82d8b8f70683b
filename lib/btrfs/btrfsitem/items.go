// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsitem decodes the payload of a tree leaf item once its
// key.ItemType is known (lib/btrfs/node.go calls UnmarshalItem
// for every leaf item it parses).
package btrfsitem

import (
	"fmt"
	"reflect"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
)

// Item is any decoded leaf item payload.
type Item interface {
	isItem()
}

func (Chunk) isItem()    {}
func (Root) isItem()     {}
func (InodeRef) isItem() {}
func (DirEntry) isItem() {}
func (Error) isItem()    {}

// Error stands in for an item this package either doesn't recognize
// or failed to decode; callers that don't care about that item type
// (everything except CHUNK_ITEM, ROOT_ITEM, INODE_REF, DIR_ITEM/
// DIR_INDEX per spec.md §4) simply ignore it.
type Error struct {
	Dat []byte
	Err error
}

func (o Error) Error() string { return o.Err.Error() }

var keytype2gotype = map[btrfsprim.ItemType]reflect.Type{
	btrfsprim.CHUNK_ITEM_KEY: reflect.TypeOf(Chunk{}),
	btrfsprim.ROOT_ITEM_KEY:  reflect.TypeOf(Root{}),
	btrfsprim.INODE_REF_KEY:  reflect.TypeOf(InodeRef{}),
	btrfsprim.DIR_ITEM_KEY:   reflect.TypeOf(DirEntry{}),
	btrfsprim.DIR_INDEX_KEY:  reflect.TypeOf(DirEntry{}),
}

// UnmarshalItem decodes dat as the item type named by key.ItemType.
// Item types this tool has no use for (everything outside the table
// above — INODE_ITEM, EXTENT_ITEM, XATTR_ITEM, and the rest) come
// back as an Error rather than aborting the walk; spec.md §4.E/§4.G
// both specify that non-matching item types within a tree are simply
// skipped, not fatal.
func UnmarshalItem(key btrfsprim.Key, dat []byte) Item {
	gotyp, ok := keytype2gotype[key.ItemType]
	if !ok {
		return Error{Dat: dat, Err: fmt.Errorf("unrecognized item type %v", key.ItemType)}
	}
	retPtr := reflect.New(gotyp)
	n, err := binstruct.Unmarshal(dat, retPtr.Interface())
	if err != nil {
		return Error{Dat: dat, Err: fmt.Errorf("item type %v: %w", key.ItemType, err)}
	}
	if n < len(dat) {
		return Error{Dat: dat, Err: fmt.Errorf("item type %v: left over data: got %v bytes but only consumed %v",
			key.ItemType, len(dat), n)}
	}
	return retPtr.Elem().Interface().(Item)
}

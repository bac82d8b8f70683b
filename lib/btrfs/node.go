// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfs

import (
	"fmt"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct/binutil"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsitem"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// NodeHeader is the fixed-size preamble common to every tree block,
// leaf or internal (spec.md §4.C).
type NodeHeader struct {
	Checksum      [0x20]byte           `bin:"off=0x0,  siz=0x20"`
	MetadataUUID  [0x10]byte           `bin:"off=0x20, siz=0x10"`
	Addr          btrfsvol.LogicalAddr `bin:"off=0x30, siz=0x8"` // this block's own logical address
	Flags         [0x7]byte            `bin:"off=0x38, siz=0x7"`
	BackrefRev    uint8                `bin:"off=0x3f, siz=0x1"`
	ChunkTreeUUID [0x10]byte           `bin:"off=0x40, siz=0x10"`
	Generation    uint64               `bin:"off=0x50, siz=0x8"`
	Owner         btrfsprim.ObjID      `bin:"off=0x58, siz=0x8"`
	NumItems      uint32               `bin:"off=0x60, siz=0x4"`
	Level         uint8                `bin:"off=0x64, siz=0x1"` // 0 = leaf
	binstruct.End `bin:"off=0x65"`
}

// KeyPointer is one entry of an internal node: the least key in, and
// the logical address of, one child block.
type KeyPointer struct {
	Key           btrfsprim.Key        `bin:"off=0x0,  siz=0x11"`
	BlockPtr      btrfsvol.LogicalAddr `bin:"off=0x11, siz=0x8"`
	Generation    uint64               `bin:"off=0x19, siz=0x8"`
	binstruct.End `bin:"off=0x21"`
}

// ItemHeader is one leaf item's descriptor: item headers are packed
// front-to-back immediately after NodeHeader, while their payloads
// are packed back-to-front from the end of the node (spec.md §4.C).
type ItemHeader struct {
	Key           btrfsprim.Key `bin:"off=0x0,  siz=0x11"`
	DataOffset    uint32        `bin:"off=0x11, siz=0x4"` // relative to the end of NodeHeader
	DataSize      uint32        `bin:"off=0x15, siz=0x4"`
	binstruct.End `bin:"off=0x19"`
}

// Node is a parsed tree block: either a leaf (Level==0, Items
// populated) or an internal node (Level>0, KeyPointers populated).
type Node struct {
	Header      NodeHeader
	KeyPointers []KeyPointer
	Items       []Item
}

// Item is one decoded leaf item: its key plus its type-dispatched
// payload (lib/btrfs/btrfsitem.UnmarshalItem).
type Item struct {
	Key  btrfsprim.Key
	Body btrfsitem.Item
}

// ParseNode decodes a raw node-sized buffer.
// addr is the logical address this block was read from, used only to
// validate it against the header's self-recorded Addr (spec.md §4.C:
// "a node whose header disagrees with where it was read from is
// corrupt, not just suspicious").
func ParseNode(addr btrfsvol.LogicalAddr, dat []byte) (*Node, error) {
	var hdr NodeHeader
	n, err := binstruct.Unmarshal(dat, &hdr)
	if err != nil {
		return nil, fmt.Errorf("node header: %w", err)
	}
	if hdr.Addr != addr {
		return nil, fmt.Errorf("node header: read block at %v but header claims %v", addr, hdr.Addr)
	}

	node := &Node{Header: hdr}
	body := dat[n:]

	if hdr.Level > 0 {
		node.KeyPointers = make([]KeyPointer, hdr.NumItems)
		off := 0
		for i := range node.KeyPointers {
			kpN, err := binstruct.Unmarshal(body[off:], &node.KeyPointers[i])
			if err != nil {
				return nil, fmt.Errorf("node: key pointer %d: %w", i, err)
			}
			off += kpN
		}
		return node, nil
	}

	node.Items = make([]Item, hdr.NumItems)
	off := 0
	for i := range node.Items {
		var ih ItemHeader
		ihN, err := binstruct.Unmarshal(body[off:], &ih)
		if err != nil {
			return nil, fmt.Errorf("node: item header %d: %w", i, err)
		}
		off += ihN
		if err := binutil.NeedNBytes(body, int(ih.DataOffset)+int(ih.DataSize)); err != nil {
			return nil, fmt.Errorf("node: item %d: payload out of bounds: %w", i, err)
		}
		itemDat := body[ih.DataOffset : int(ih.DataOffset)+int(ih.DataSize)]
		node.Items[i] = Item{
			Key:  ih.Key,
			Body: btrfsitem.UnmarshalItem(ih.Key, itemDat),
		}
	}
	return node, nil
}

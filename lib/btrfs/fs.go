// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfs implements just enough of the on-disk format to walk
// an unmounted, single-device btrfs image's default filesystem tree
// and print the absolute path of every regular file it finds
// (spec.md §§3-5). It never mounts, writes, or modifies the image.
package btrfs

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsitem"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/diskio"
)

// FS is an opened btrfs image: the raw positioned-read handle, the
// parsed superblock, and the logical-to-physical chunk map, bootstrapped
// and completed before any tree is walked (spec.md §4.A-B).
type FS struct {
	File   diskio.File[btrfsvol.PhysicalAddr]
	Sb     Superblock
	Chunks btrfsvol.ChunkMap
}

// Open reads and validates the superblock, then bootstraps and
// completes the chunk map, leaving fs ready for ReadNode calls
// against any logical address in the default filesystem tree.
func Open(ctx context.Context, file diskio.File[btrfsvol.PhysicalAddr]) (*FS, error) {
	fs := &FS{File: file}

	sbDat := make([]byte, 0x1000)
	if _, err := fs.File.ReadAt(sbDat, SuperblockAddr); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	if _, err := binstruct.Unmarshal(sbDat, &fs.Sb); err != nil {
		return nil, fmt.Errorf("parsing superblock: %w", err)
	}
	if err := fs.Sb.Validate(); err != nil {
		return nil, err
	}

	if err := fs.bootstrapChunkMap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrapping chunk map: %w", err)
	}
	if err := fs.walkChunkTree(ctx); err != nil {
		return nil, fmt.Errorf("walking chunk tree: %w", err)
	}
	return fs, nil
}

// bootstrapChunkMap seeds the chunk map from the superblock's
// embedded system chunk array: spec.md §4.A's "enough of a map to
// find the chunk tree's own root block." Entries for item types other
// than CHUNK_ITEM, or chunks with zero stripes, are fatal — the
// system array is supposed to hold nothing else.
func (fs *FS) bootstrapChunkMap(ctx context.Context) error {
	chunks, err := fs.Sb.ParseSysChunkArray()
	if err != nil {
		return err
	}
	for _, sc := range chunks {
		if err := fs.insertChunk(ctx, sc.Key, sc.Chunk); err != nil {
			return err
		}
	}
	return nil
}

// insertChunk records a chunk's first stripe in the chunk map. A
// chunk with more than one stripe is accepted but only its first
// stripe is ever honored, since this tool is single-device/
// single-stripe only (spec.md §4.D.2); that's a warning, not a fatal
// error, unlike a chunk with no stripes at all.
func (fs *FS) insertChunk(ctx context.Context, key btrfsprim.Key, chunk btrfsitem.Chunk) error {
	if len(chunk.Stripes) == 0 {
		return fmt.Errorf("chunk at logical=%v has zero stripes", btrfsvol.LogicalAddr(key.Offset))
	}
	if len(chunk.Stripes) > 1 {
		dlog.Warnf(ctx, "warning: %d stripes detected but only processing 1", len(chunk.Stripes))
	}
	fs.Chunks.Insert(btrfsvol.Mapping{
		Logical:  btrfsvol.LogicalAddr(key.Offset),
		Size:     chunk.Head.Size,
		Physical: chunk.Stripes[0].Offset,
	})
	return nil
}

// walkChunkTree completes the chunk map (spec.md §4.B) by descending
// the real chunk tree, whose root is now resolvable via the
// bootstrap-seeded map. Per spec.md §4.C/§4.E, the chunk tree's root
// block may differ in size from the superblock's node_size, so it's
// read using the size the chunk map itself records for it rather than
// Sb.NodeSize; every node beneath it uses the ordinary node_size read.
func (fs *FS) walkChunkTree(ctx context.Context) error {
	root, err := fs.readChunkTreeRoot()
	if err != nil {
		return fmt.Errorf("chunk tree root: %w", err)
	}
	return fs.walkNodeValue(root, func(key btrfsprim.Key, body btrfsitem.Item) error {
		chunk, ok := body.(btrfsitem.Chunk)
		if !ok {
			return nil
		}
		return fs.insertChunk(ctx, key, chunk)
	})
}

// readChunkTreeRoot reads and parses the chunk tree's root block,
// sized from the chunk map entry that already covers it rather than
// from Sb.NodeSize (spec.md §4.C/§4.E).
func (fs *FS) readChunkTreeRoot() (*Node, error) {
	addr := fs.Sb.ChunkTree
	mapping, ok := fs.Chunks.Lookup(addr)
	if !ok {
		return nil, fmt.Errorf("logical address %v is not mapped by any known chunk", addr)
	}
	dat, err := fs.readNodeDat(addr, int(mapping.Size))
	if err != nil {
		return nil, err
	}
	return ParseNode(addr, dat)
}

// walkNode reads the node at addr and recursively descends it,
// invoking fn for every leaf item encountered. It does not care which
// tree it's walking; callers distinguish by which root address they
// pass in.
func (fs *FS) walkNode(addr btrfsvol.LogicalAddr, fn func(btrfsprim.Key, btrfsitem.Item) error) error {
	node, err := fs.ReadNode(addr)
	if err != nil {
		return err
	}
	return fs.walkNodeValue(node, fn)
}

// walkNodeValue is walkNode's recursive step over an already-read
// node, split out so callers that read the root block specially (see
// readChunkTreeRoot) can still share the descent logic below it.
func (fs *FS) walkNodeValue(node *Node, fn func(btrfsprim.Key, btrfsitem.Item) error) error {
	if node.Header.Level == 0 {
		for _, item := range node.Items {
			if err := fn(item.Key, item.Body); err != nil {
				return err
			}
		}
		return nil
	}
	for _, kp := range node.KeyPointers {
		if err := fs.walkNode(kp.BlockPtr, fn); err != nil {
			return err
		}
	}
	return nil
}

// readNodeDat translates addr through the chunk map and reads size
// bytes at the resulting physical offset (spec.md §4.C/§4.E: "a tree
// pointer with no chunk map entry is a fatal Integrity error").
func (fs *FS) readNodeDat(addr btrfsvol.LogicalAddr, size int) ([]byte, error) {
	phys, ok := fs.Chunks.Physical(addr)
	if !ok {
		return nil, fmt.Errorf("logical address %v is not mapped by any known chunk", addr)
	}
	dat := make([]byte, size)
	if _, err := fs.File.ReadAt(dat, btrfsvol.PhysicalAddr(phys)); err != nil {
		return nil, fmt.Errorf("reading node at logical=%v physical=%v: %w", addr, phys, err)
	}
	return dat, nil
}

// ReadNode reads and parses one node_size block at addr. Only the
// chunk tree's root block is ever read at a different size; see
// readChunkTreeRoot.
func (fs *FS) ReadNode(addr btrfsvol.LogicalAddr) (*Node, error) {
	dat, err := fs.readNodeDat(addr, int(fs.Sb.NodeSize))
	if err != nil {
		return nil, err
	}
	return ParseNode(addr, dat)
}

// FindRoot scans the root tree (whose own root block address is
// fs.Sb.RootTree) for the ROOT_ITEM naming treeID, returning the
// logical address of that tree's root block.
//
// Per spec.md §4.F, the root tree's root block must itself be a leaf
// — this tool never descends an internal root-tree node — and items
// are scanned in reverse (highest key first) so that, were there ever
// more than one ROOT_ITEM for the same objectid (e.g. across
// generations), the newest (greatest Offset, i.e. generation) wins.
func (fs *FS) FindRoot(treeID btrfsprim.ObjID) (btrfsvol.LogicalAddr, btrfsprim.ObjID, error) {
	node, err := fs.ReadNode(fs.Sb.RootTree)
	if err != nil {
		return 0, 0, fmt.Errorf("reading root tree root: %w", err)
	}
	if node.Header.Level != 0 {
		return 0, 0, fmt.Errorf("root tree root is not a leaf node")
	}
	for i := len(node.Items) - 1; i >= 0; i-- {
		item := node.Items[i]
		if item.Key.ObjectID != treeID || item.Key.ItemType != btrfsprim.ROOT_ITEM_KEY {
			continue
		}
		root, ok := item.Body.(btrfsitem.Root)
		if !ok {
			return 0, 0, fmt.Errorf("root tree: item %v: %w", item.Key, item.Body.(btrfsitem.Error).Err)
		}
		return root.ByteNr, root.RootDirID, nil
	}
	return 0, 0, fmt.Errorf("root tree: no ROOT_ITEM for tree %v", treeID)
}

// WalkTree calls fn for every leaf item in the tree rooted at addr.
func (fs *FS) WalkTree(addr btrfsvol.LogicalAddr, fn func(btrfsprim.Key, btrfsitem.Item) error) error {
	return fs.walkNode(addr, fn)
}

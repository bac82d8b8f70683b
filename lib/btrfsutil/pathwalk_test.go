// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsutil_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfsutil"
)

// memFile is an in-memory diskio.File[btrfsvol.PhysicalAddr] backed by a
// plain byte slice, for assembling a synthetic image byte-for-byte.
type memFile struct {
	dat []byte
}

func (f *memFile) Size() btrfsvol.PhysicalAddr { return btrfsvol.PhysicalAddr(len(f.dat)) }

func (f *memFile) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	if int(off)+len(p) > len(f.dat) {
		return 0, fmt.Errorf("short read at offset %v: image is only %v bytes", off, len(f.dat))
	}
	n := copy(p, f.dat[off:])
	return n, nil
}

func (f *memFile) grow(n int) {
	if len(f.dat) < n {
		f.dat = append(f.dat, make([]byte, n-len(f.dat))...)
	}
}

func (f *memFile) writeAt(off int, p []byte) {
	f.grow(off + len(p))
	copy(f.dat[off:], p)
}

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func le64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

func packKey(objID btrfsprim.ObjID, itemType btrfsprim.ItemType, offset uint64) []byte {
	var b []byte
	b = append(b, le64(uint64(objID))...)
	b = append(b, byte(itemType))
	b = append(b, le64(offset)...)
	return b
}

type leafItem struct {
	key  []byte // 0x11 bytes, from packKey
	data []byte
}

// packLeaf assembles one leaf node's on-disk bytes, sized nodeSize, at
// logical address addr, owned by owner, holding items in the given
// order. Item payloads are placed back-to-back right after the item
// header array (see lib/btrfs/node.go: DataOffset is resolved relative
// to the end of NodeHeader, not tied to any particular packing
// direction), which is simpler to construct than mimicking real
// btrfs's tail-growing-downward layout while remaining a valid decode
// of the same on-disk shapes.
func packLeaf(nodeSize int, addr btrfsvol.LogicalAddr, owner btrfsprim.ObjID, items []leafItem) []byte {
	dat := make([]byte, nodeSize)

	// NodeHeader
	copy(dat[0x30:0x38], le64(uint64(addr)))
	copy(dat[0x58:0x60], le64(uint64(owner)))
	copy(dat[0x60:0x64], le32(uint32(len(items))))
	dat[0x64] = 0 // Level = leaf

	body := dat[0x65:]
	headerSize := 0x19 * len(items)
	dataOff := headerSize
	for i, item := range items {
		h := body[i*0x19:]
		copy(h[0x0:0x11], item.key)
		copy(h[0x11:0x15], le32(uint32(dataOff)))
		copy(h[0x15:0x19], le32(uint32(len(item.data))))
		copy(body[dataOff:dataOff+len(item.data)], item.data)
		dataOff += len(item.data)
	}
	return dat
}

func packChunk(size btrfsvol.AddrDelta, physical btrfsvol.PhysicalAddr) []byte {
	var b []byte
	b = append(b, le64(uint64(size))...) // Size
	b = append(b, le64(0)...)            // Owner
	b = append(b, le64(uint64(size))...) // StripeLen
	b = append(b, le64(0)...)            // Type
	b = append(b, make([]byte, 12)...)   // IOOptimalAlign/Width/IOMinSize
	b = append(b, le16(1)...)            // NumStripes
	b = append(b, le16(0)...)            // SubStripes
	b = append(b, le64(1)...)            // Stripe.DeviceID
	b = append(b, le64(uint64(physical))...) // Stripe.Offset
	b = append(b, make([]byte, 16)...)   // Stripe.DeviceUUID
	return b
}

func packRootItem(byteNr btrfsvol.LogicalAddr, rootDirID btrfsprim.ObjID) []byte {
	var b []byte
	b = append(b, make([]byte, 0xa0)...) // InodeRaw
	b = append(b, le64(0)...)            // Generation
	b = append(b, le64(uint64(rootDirID))...)
	b = append(b, le64(uint64(byteNr))...)
	b = append(b, make([]byte, 0xff)...) // Rest
	return b
}

func packInodeRef(name string) []byte {
	var b []byte
	b = append(b, le64(0)...) // Index
	b = append(b, le16(uint16(len(name)))...)
	b = append(b, []byte(name)...)
	return b
}

func packDirEntry(loc btrfsprim.Key, fileType byte, name string) []byte {
	var b []byte
	b = append(b, packKey(loc.ObjectID, loc.ItemType, loc.Offset)...)
	b = append(b, le64(0)...)                 // TransID
	b = append(b, le16(0)...)                 // DataLen
	b = append(b, le16(uint16(len(name)))...) // NameLen
	b = append(b, fileType)
	b = append(b, []byte(name)...)
	return b
}

const (
	testNodeSize = 0x1000
	laChunkTree  = 0x20000
	laRootTree   = 0x21000
	laFSTree     = 0x22000
	chunkMapBase = 0x20000
	// chunkMapSize is the single chunk's on-disk size: it has to cover
	// every logical address this image actually uses (the chunk, root,
	// and filesystem tree roots all live inside it), since
	// FS.Open reads the chunk tree's root block using exactly this
	// many bytes rather than the superblock's node_size.
	chunkMapSize = laFSTree + testNodeSize - chunkMapBase
	rootDirObjID = btrfsprim.ObjID(256)
	subdirObjID  = btrfsprim.ObjID(257)
	fileAObjID   = btrfsprim.ObjID(258)
	fileBObjID   = btrfsprim.ObjID(259)
)

// buildImage assembles a complete, minimal synthetic btrfs image:
//   /a.txt        (regular file directly in the root directory)
//   /dir/b        (regular file one level down, reached via INODE_REF)
//   /dir          (a directory entry alongside /a.txt; must be skipped)
//
// mutate, if non-nil, is applied to the fully-built image bytes before
// returning, letting individual tests corrupt one specific thing.
func buildImage(t *testing.T, mutate func(dat []byte)) *memFile {
	t.Helper()
	f := &memFile{}

	chunkBytes := packChunk(btrfsvol.AddrDelta(chunkMapSize), btrfsvol.PhysicalAddr(chunkMapBase))

	// Superblock
	sb := make([]byte, 0x1000)
	copy(sb[0x40:0x48], []byte("_BHRfS_M"))
	copy(sb[0x50:0x58], le64(uint64(laRootTree)))
	copy(sb[0x58:0x60], le64(uint64(laChunkTree)))
	copy(sb[0x94:0x98], le32(testNodeSize)) // NodeSize
	sysArray := append(packKey(btrfsprim.FIRST_CHUNK_TREE_OBJECTID, btrfsprim.CHUNK_ITEM_KEY, chunkMapBase), chunkBytes...)
	copy(sb[0xa0:0xa4], le32(uint32(len(sysArray)))) // SysChunkArraySize
	copy(sb[0x32b:0x32b+len(sysArray)], sysArray)
	f.writeAt(int(btrfs.SuperblockAddr), sb)

	// Chunk tree root: re-states the same chunk the sys array already
	// bootstrapped (first-wins insertion keeps them consistent).
	chunkLeaf := packLeaf(testNodeSize, laChunkTree, btrfsprim.CHUNK_TREE_OBJECTID, []leafItem{
		{key: packKey(btrfsprim.FIRST_CHUNK_TREE_OBJECTID, btrfsprim.CHUNK_ITEM_KEY, chunkMapBase), data: chunkBytes},
	})
	f.writeAt(laChunkTree, chunkLeaf)

	// Root tree root: one ROOT_ITEM for FS_TREE_OBJECTID.
	rootLeaf := packLeaf(testNodeSize, laRootTree, btrfsprim.ROOT_TREE_OBJECTID, []leafItem{
		{key: packKey(btrfsprim.FS_TREE_OBJECTID, btrfsprim.ROOT_ITEM_KEY, 0), data: packRootItem(laFSTree, rootDirObjID)},
	})
	f.writeAt(laRootTree, rootLeaf)

	// Filesystem tree root.
	fsLeaf := packLeaf(testNodeSize, laFSTree, btrfsprim.FS_TREE_OBJECTID, []leafItem{
		{
			key:  packKey(rootDirObjID, btrfsprim.DIR_ITEM_KEY, 0x1111),
			data: packDirEntry(btrfsprim.Key{ObjectID: fileAObjID, ItemType: btrfsprim.INODE_ITEM_KEY}, byte(1 /* FT_REG_FILE */), "a.txt"),
		},
		{
			key:  packKey(rootDirObjID, btrfsprim.DIR_ITEM_KEY, 0x2222),
			data: packDirEntry(btrfsprim.Key{ObjectID: subdirObjID, ItemType: btrfsprim.INODE_ITEM_KEY}, byte(2 /* FT_DIR */), "dir"),
		},
		{
			key:  packKey(subdirObjID, btrfsprim.INODE_REF_KEY, uint64(rootDirObjID)),
			data: packInodeRef("dir"),
		},
		{
			key:  packKey(subdirObjID, btrfsprim.DIR_ITEM_KEY, 0x3333),
			data: packDirEntry(btrfsprim.Key{ObjectID: fileBObjID, ItemType: btrfsprim.INODE_ITEM_KEY}, byte(1 /* FT_REG_FILE */), "b"),
		},
	})
	f.writeAt(laFSTree, fsLeaf)

	if mutate != nil {
		mutate(f.dat)
	}
	return f
}

func TestPathWalkerWalkFiles(t *testing.T) {
	t.Parallel()

	f := buildImage(t, nil)
	fs, err := btrfs.Open(context.Background(), f)
	require.NoError(t, err)

	rootAddr, rootDirID, err := fs.FindRoot(btrfsprim.FS_TREE_OBJECTID)
	require.NoError(t, err)
	assert.Equal(t, rootDirObjID, rootDirID)

	w, err := btrfsutil.NewPathWalker(fs, rootAddr, rootDirID)
	require.NoError(t, err)

	var got []string
	err = w.WalkFiles(func(absPath string) error {
		got = append(got, absPath)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.txt", "/dir/b"}, got)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	f := buildImage(t, func(dat []byte) {
		dat[int(btrfs.SuperblockAddr)+0x40] = 'X'
	})
	_, err := btrfs.Open(context.Background(), f)
	assert.Error(t, err)
}

func TestOpenRejectsBadSysArrayItemType(t *testing.T) {
	t.Parallel()

	f := buildImage(t, func(dat []byte) {
		// The item type byte of the sys_chunk_array's embedded Key is
		// at offset 0x32b+0x8 (ObjectID is 8 bytes, then ItemType).
		dat[int(btrfs.SuperblockAddr)+0x32b+0x8] = 0xff
	})
	_, err := btrfs.Open(context.Background(), f)
	assert.Error(t, err)
}

func TestOpenRejectsUnmappedChunkTree(t *testing.T) {
	t.Parallel()

	f := buildImage(t, func(dat []byte) {
		// Point the superblock's chunk-tree root at a logical address
		// no bootstrap chunk covers.
		off := int(btrfs.SuperblockAddr) + 0x58
		copy(dat[off:off+8], le64(uint64(0x999999)))
	})
	_, err := btrfs.Open(context.Background(), f)
	assert.Error(t, err)
}

// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfs

import (
	"fmt"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsitem"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// SuperblockAddr is the sole superblock location this tool reads
// from (spec.md §6: "a superblock at byte offset 0x10000"). Real
// btrfs keeps mirror copies further into the device; consulting them
// for cross-checking is out of scope per spec.md §1.
const SuperblockAddr btrfsvol.PhysicalAddr = 0x10000

var SuperblockMagic = [8]byte{'_', 'B', 'H', 'R', 'f', 'S', '_', 'M'}

// Superblock is the fixed, packed on-disk superblock record. Fields
// this tool never consults (the device item, the label, the backup
// roots, checksum algorithm, ...) are still declared at their exact
// on-disk offset and size, as raw bytes, so the struct's static size
// — and so the offset of every field that follows them — matches the
// real layout bit-for-bit.
type Superblock struct {
	Checksum          [0x20]byte            `bin:"off=0x0,   siz=0x20"`
	FSUUID            [0x10]byte            `bin:"off=0x20,  siz=0x10"`
	Self              btrfsvol.PhysicalAddr `bin:"off=0x30,  siz=0x8"`
	Flags             uint64                `bin:"off=0x38,  siz=0x8"`
	Magic             [8]byte               `bin:"off=0x40,  siz=0x8"`
	Generation        uint64                `bin:"off=0x48,  siz=0x8"`
	RootTree          btrfsvol.LogicalAddr  `bin:"off=0x50,  siz=0x8"`
	ChunkTree         btrfsvol.LogicalAddr  `bin:"off=0x58,  siz=0x8"`
	LogTree           btrfsvol.LogicalAddr  `bin:"off=0x60,  siz=0x8"`
	LogRootTransID    uint64                `bin:"off=0x68,  siz=0x8"`
	TotalBytes        uint64                `bin:"off=0x70,  siz=0x8"`
	BytesUsed         uint64                `bin:"off=0x78,  siz=0x8"`
	RootDirObjectID   btrfsprim.ObjID       `bin:"off=0x80,  siz=0x8"`
	NumDevices        uint64                `bin:"off=0x88,  siz=0x8"`
	SectorSize        uint32                `bin:"off=0x90,  siz=0x4"`
	NodeSize          uint32                `bin:"off=0x94,  siz=0x4"`
	LeafSize          uint32                `bin:"off=0x98,  siz=0x4"`
	StripeSize        uint32                `bin:"off=0x9c,  siz=0x4"`
	SysChunkArraySize uint32                `bin:"off=0xa0,  siz=0x4"`
	ChunkRootGen      uint64                `bin:"off=0xa4,  siz=0x8"`
	CompatFlags       uint64                `bin:"off=0xac,  siz=0x8"`
	CompatROFlags     uint64                `bin:"off=0xb4,  siz=0x8"`
	IncompatFlags     uint64                `bin:"off=0xbc,  siz=0x8"`
	ChecksumType      uint16                `bin:"off=0xc4,  siz=0x2"`
	RootLevel         uint8                 `bin:"off=0xc6,  siz=0x1"`
	ChunkLevel        uint8                 `bin:"off=0xc7,  siz=0x1"`
	LogLevel          uint8                 `bin:"off=0xc8,  siz=0x1"`
	DevItem           [0x62]byte            `bin:"off=0xc9,  siz=0x62"`
	Label             [0x100]byte           `bin:"off=0x12b, siz=0x100"`
	CacheGeneration   uint64                `bin:"off=0x22b, siz=0x8"`
	UUIDTreeGen       uint64                `bin:"off=0x233, siz=0x8"`
	MetadataUUID      [0x10]byte            `bin:"off=0x23b, siz=0x10"`
	Reserved          [0xe0]byte            `bin:"off=0x24b, siz=0xe0"`
	SysChunkArray     [0x800]byte           `bin:"off=0x32b, siz=0x800"`
	SuperRoots        [0x2a0]byte           `bin:"off=0xb2b, siz=0x2a0"`
	Padding           [0x235]byte           `bin:"off=0xdcb, siz=0x235"`
	binstruct.End     `bin:"off=0x1000"`
}

// Validate checks the one invariant spec.md §6 cares about before
// anything downstream trusts this superblock: the magic number at
// 0x40. It deliberately does not validate Checksum — this tool skips
// superblock/node checksum verification entirely (see DESIGN.md).
func (sb *Superblock) Validate() error {
	if sb.Magic != SuperblockMagic {
		return fmt.Errorf("superblock: bad magic: %q", sb.Magic[:])
	}
	return nil
}

// ParseSysChunkArray decodes the (Key, Chunk) pairs packed into the
// superblock's embedded system chunk array (spec.md §4.A): enough of
// the chunk tree to resolve the chunk tree's own root block, so the
// real chunk tree can then be walked to complete the map.
func (sb *Superblock) ParseSysChunkArray() ([]SysChunk, error) {
	dat := sb.SysChunkArray[:sb.SysChunkArraySize]
	var ret []SysChunk
	off := 0
	for off < len(dat) {
		var key btrfsprim.Key
		keyN, err := binstruct.Unmarshal(dat[off:], &key)
		if err != nil {
			return ret, fmt.Errorf("sys_chunk_array: offset=%#x: %w", off, err)
		}
		if key.ItemType != btrfsprim.CHUNK_ITEM_KEY {
			return ret, fmt.Errorf("sys_chunk_array: offset=%#x: unexpected item type %v (expected CHUNK_ITEM)",
				off, key.ItemType)
		}
		off += keyN
		var chunk btrfsitem.Chunk
		chunkN, err := binstruct.Unmarshal(dat[off:], &chunk)
		if err != nil {
			return ret, fmt.Errorf("sys_chunk_array: offset=%#x: %w", off, err)
		}
		off += chunkN
		ret = append(ret, SysChunk{Key: key, Chunk: chunk})
	}
	return ret, nil
}

// SysChunk is one (Key, Chunk) pair decoded out of the superblock's
// embedded system chunk array.
type SysChunk struct {
	Key   btrfsprim.Key
	Chunk btrfsitem.Chunk
}

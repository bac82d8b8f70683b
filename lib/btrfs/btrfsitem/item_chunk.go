// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// Chunk is the payload of a CHUNK_ITEM: it maps a logical address
// range onto one or more physical stripes. Per spec.md §4.D/§4.E,
// only the first stripe is ever honored; a Chunk with num_stripes>1
// is a RAID layout this system does not attempt to reconstruct.
type Chunk struct {
	Head    ChunkHeader
	Stripes []ChunkStripe
}

type ChunkHeader struct {
	Size           btrfsvol.AddrDelta `bin:"off=0x0,  siz=0x8"`
	Owner          uint64             `bin:"off=0x8,  siz=0x8"`
	StripeLen      uint64             `bin:"off=0x10, siz=0x8"`
	Type           uint64             `bin:"off=0x18, siz=0x8"`
	IOOptimalAlign uint32             `bin:"off=0x20, siz=0x4"`
	IOOptimalWidth uint32             `bin:"off=0x24, siz=0x4"`
	IOMinSize      uint32             `bin:"off=0x28, siz=0x4"`
	NumStripes     uint16             `bin:"off=0x2c, siz=0x2"`
	SubStripes     uint16             `bin:"off=0x2e, siz=0x2"`
	binstruct.End  `bin:"off=0x30"`
}

type ChunkStripe struct {
	DeviceID      uint64                `bin:"off=0x0,  siz=0x8"`
	Offset        btrfsvol.PhysicalAddr `bin:"off=0x8,  siz=0x8"`
	DeviceUUID    [16]byte              `bin:"off=0x10, siz=0x10"`
	binstruct.End `bin:"off=0x20"`
}

func (chunk *Chunk) UnmarshalBinary(dat []byte) (int, error) {
	n, err := binstruct.Unmarshal(dat, &chunk.Head)
	if err != nil {
		return n, err
	}
	chunk.Stripes = make([]ChunkStripe, chunk.Head.NumStripes)
	for i := range chunk.Stripes {
		_n, err := binstruct.Unmarshal(dat[n:], &chunk.Stripes[i])
		n += _n
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

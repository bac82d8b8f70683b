// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binint defines fixed-width integer types whose on-disk
// representation is always little-endian, regardless of host byte
// order. The images this tool reads are little-endian-only (see
// spec.md §1's Non-goals: "endian portability beyond little-endian
// images" is explicitly not attempted), so only little-endian
// variants are provided.
package binint

import (
	"encoding/binary"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/binstruct/binutil"
)

type U8 uint8

func (U8) BinaryStaticSize() int { return 1 }
func (i U8) MarshalBinary() ([]byte, error) {
	return []byte{byte(i)}, nil
}
func (i *U8) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 1); err != nil {
		return 0, err
	}
	*i = U8(dat[0])
	return 1, nil
}

type I8 int8

func (I8) BinaryStaticSize() int { return 1 }
func (i I8) MarshalBinary() ([]byte, error) {
	return []byte{byte(i)}, nil
}
func (i *I8) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 1); err != nil {
		return 0, err
	}
	*i = I8(dat[0])
	return 1, nil
}

type U16le uint16

func (U16le) BinaryStaticSize() int { return 2 }
func (i U16le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 2)
	binary.LittleEndian.PutUint16(dat, uint16(i))
	return dat, nil
}
func (i *U16le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 2); err != nil {
		return 0, err
	}
	*i = U16le(binary.LittleEndian.Uint16(dat))
	return 2, nil
}

type I16le int16

func (I16le) BinaryStaticSize() int { return 2 }
func (i I16le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 2)
	binary.LittleEndian.PutUint16(dat, uint16(i))
	return dat, nil
}
func (i *I16le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 2); err != nil {
		return 0, err
	}
	*i = I16le(binary.LittleEndian.Uint16(dat))
	return 2, nil
}

type U32le uint32

func (U32le) BinaryStaticSize() int { return 4 }
func (i U32le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 4)
	binary.LittleEndian.PutUint32(dat, uint32(i))
	return dat, nil
}
func (i *U32le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*i = U32le(binary.LittleEndian.Uint32(dat))
	return 4, nil
}

type I32le int32

func (I32le) BinaryStaticSize() int { return 4 }
func (i I32le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 4)
	binary.LittleEndian.PutUint32(dat, uint32(i))
	return dat, nil
}
func (i *I32le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*i = I32le(binary.LittleEndian.Uint32(dat))
	return 4, nil
}

type U64le uint64

func (U64le) BinaryStaticSize() int { return 8 }
func (i U64le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 8)
	binary.LittleEndian.PutUint64(dat, uint64(i))
	return dat, nil
}
func (i *U64le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*i = U64le(binary.LittleEndian.Uint64(dat))
	return 8, nil
}

type I64le int64

func (I64le) BinaryStaticSize() int { return 8 }
func (i I64le) MarshalBinary() ([]byte, error) {
	dat := make([]byte, 8)
	binary.LittleEndian.PutUint64(dat, uint64(i))
	return dat, nil
}
func (i *I64le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*i = I64le(binary.LittleEndian.Uint64(dat))
	return 8, nil
}

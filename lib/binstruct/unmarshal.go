// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"errors"
	"fmt"
	"reflect"
)

type Unmarshaler interface {
	UnmarshalBinary([]byte) (int, error)
}

// Unmarshal decodes a little-endian on-disk record from dat into
// dstPtr, returning the number of bytes consumed. Struct fields are
// laid out exactly as tagged (see structs.go); there is no implicit
// padding and no host-alignment dependence.
func Unmarshal(dat []byte, dstPtr any) (int, error) {
	if unmar, ok := dstPtr.(Unmarshaler); ok {
		n, err := unmar.UnmarshalBinary(dat)
		if err != nil {
			err = &UnmarshalError{
				Type:   reflect.TypeOf(dstPtr),
				Method: "UnmarshalBinary",
				Err:    err,
			}
		}
		return n, err
	}
	return unmarshalWithoutInterface(dat, dstPtr)
}

// UnmarshalWithoutInterface decodes the static, struct-tagged portion
// of dstPtr's type without invoking dstPtr's own UnmarshalBinary, for
// use by types (like InodeRef and DirEntry) whose UnmarshalBinary
// decodes a fixed header this way and then reads a variable-length
// tail by hand.
func UnmarshalWithoutInterface(dat []byte, dstPtr any) (int, error) {
	return unmarshalWithoutInterface(dat, dstPtr)
}

func unmarshalWithoutInterface(dat []byte, dstPtr any) (int, error) {
	_dstPtr := reflect.ValueOf(dstPtr)
	if _dstPtr.Kind() != reflect.Ptr {
		panic(&InvalidTypeError{
			Type: _dstPtr.Type(),
			Err:  errors.New("not a pointer"),
		})
	}
	dst := _dstPtr.Elem()

	switch dst.Kind() {
	case reflect.Uint8, reflect.Int8, reflect.Uint16, reflect.Int16, reflect.Uint32, reflect.Int32, reflect.Uint64, reflect.Int64:
		typ, ok := intKind2Type[dst.Kind()]
		if !ok {
			panic(&InvalidTypeError{
				Type: _dstPtr.Type(),
				Err:  fmt.Errorf("unsupported integer kind %v", dst.Kind()),
			})
		}
		newDstPtr := reflect.New(typ)
		n, err := Unmarshal(dat, newDstPtr.Interface())
		dst.Set(newDstPtr.Elem().Convert(dst.Type()))
		return n, err
	case reflect.Array:
		var n int
		for i := 0; i < dst.Len(); i++ {
			_n, err := Unmarshal(dat[n:], dst.Index(i).Addr().Interface())
			n += _n
			if err != nil {
				return n, err
			}
		}
		return n, nil
	case reflect.Struct:
		return getStructHandler(dst.Type()).Unmarshal(dat, dst)
	default:
		panic(&InvalidTypeError{
			Type: _dstPtr.Type(),
			Err: fmt.Errorf("does not implement binstruct.Unmarshaler and kind=%v is not a supported statically-sized kind",
				dst.Kind()),
		})
	}
}

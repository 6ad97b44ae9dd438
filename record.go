// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// Layout describes a record type that is safe to transport: fixed size,
// no pointers, meaningful when its bytes are copied to another core or
// another process.
type Layout struct {
	Size int
	Tag  uint64 // xxhash of the canonical field layout
}

// LayoutOf validates T and returns its layout.
//
// Accepted: booleans, sized integers, floats, complex numbers, and arrays
// and structs built from them. Rejected: pointers, uintptr,
// unsafe.Pointer, strings, slices, maps, channels, funcs and interfaces,
// at any depth. Zero-sized types are rejected as well.
func LayoutOf[T any]() (Layout, error) {
	typ := reflect.TypeFor[T]()
	var b strings.Builder
	if err := describe(&b, typ); err != nil {
		return Layout{}, fmt.Errorf("%w: %v: %v", ErrInvalidRecord, typ, err)
	}
	size := int(unsafe.Sizeof(*new(T)))
	if size == 0 {
		return Layout{}, fmt.Errorf("%w: %v has zero size", ErrInvalidRecord, typ)
	}
	if typ.Align() > 8 {
		return Layout{}, fmt.Errorf("%w: %v alignment %d > 8", ErrInvalidRecord, typ, typ.Align())
	}
	return Layout{Size: size, Tag: xxhash.Sum64String(b.String())}, nil
}

// describe writes a canonical description of typ and fails on any field
// that would carry a reference.
func describe(b *strings.Builder, typ reflect.Type) error {
	switch typ.Kind() {
	case reflect.Bool:
		b.WriteString("b")
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		b.WriteString("i")
		b.WriteString(strconv.Itoa(int(typ.Size())))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		b.WriteString("u")
		b.WriteString(strconv.Itoa(int(typ.Size())))
	case reflect.Float32, reflect.Float64:
		b.WriteString("f")
		b.WriteString(strconv.Itoa(int(typ.Size())))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString("c")
		b.WriteString(strconv.Itoa(int(typ.Size())))
	case reflect.Array:
		b.WriteString("[")
		b.WriteString(strconv.Itoa(typ.Len()))
		b.WriteString("]")
		return describe(b, typ.Elem())
	case reflect.Struct:
		b.WriteString("{")
		for i := range typ.NumField() {
			f := typ.Field(i)
			b.WriteString(strconv.Itoa(int(f.Offset)))
			b.WriteString(":")
			if err := describe(b, f.Type); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
			b.WriteString(";")
		}
		b.WriteString("}")
		b.WriteString(strconv.Itoa(int(typ.Size())))
	default:
		return fmt.Errorf("%v is not plain data", typ.Kind())
	}
	return nil
}

// bytesOf views a record as its raw bytes.
func bytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

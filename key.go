// Copyright 2025 The conset Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conset

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Slots store the raw bit pattern of a key packed into a single 64-bit word
// so that every state transition of a slot is a single compare-and-swap.
// Keys wider than a word, or keys whose representation contains pointers,
// cannot be stored this way and are rejected at construction time before any
// allocation happens.

// checkKeyType validates that K can be packed into a slot word. It returns
// the key's size in bytes. Rejection is a construction-time fault: the caller
// asked for a table of a key type the engine cannot represent.
func checkKeyType[K comparable]() uintptr {
	t := reflect.TypeFor[K]()
	if t.Size() > 8 {
		panic(fmt.Sprintf("conset: key type %s is %d bytes, exceeding the 8 byte slot width", t, t.Size()))
	}
	if !bitComparable(t) {
		panic(fmt.Sprintf("conset: key type %s has no safe raw bit-pattern comparison", t))
	}
	return t.Size()
}

// bitComparable reports whether equal values of t always have equal bit
// patterns and the bit pattern is stable (no pointers, no padding holes that
// survive into distinct representations of equal values).
func bitComparable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		return bitComparable(t.Elem())
	case reflect.Struct:
		var fieldBytes uintptr
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !bitComparable(f.Type) {
				return false
			}
			fieldBytes += f.Type.Size()
		}
		// Padding bytes are not rewritten on assignment, so two equal
		// values could carry different garbage in the holes.
		return fieldBytes == t.Size()
	default:
		// Pointers, strings, channels, maps, interfaces and funcs all
		// compare by something other than their stored bits.
		return false
	}
}

// packKey returns the slot word for key: the key's raw bytes in the low end
// of the word, zero elsewhere. The mapping is injective for any key type
// admitted by checkKeyType, which is what lets sentinel comparisons operate
// on words alone.
func packKey[K comparable](key K) uint64 {
	var w uint64
	sz := unsafe.Sizeof(key)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&w)), sz),
		unsafe.Slice((*byte)(unsafe.Pointer(&key)), sz))
	return w
}

// unpackKey inverts packKey.
func unpackKey[K comparable](w uint64) K {
	var key K
	sz := unsafe.Sizeof(key)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&key)), sz),
		unsafe.Slice((*byte)(unsafe.Pointer(&w)), sz))
	return key
}

// keyBytes returns a view of key's raw bytes for hashing. The view is only
// valid while key is live; callers hash it immediately.
func keyBytes[K comparable](key *K) []byte {
	return unsafe.Slice((*byte)(noescape(unsafe.Pointer(key))), unsafe.Sizeof(*key))
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}

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
	"sync/atomic"
	"unsafe"
)

// windowSize is the number of slots probed together as one unit. Each probe
// step inspects one window; the lane group divides the window's slots among
// its lanes. Two word-sized slots keep a window within a quarter cache line
// while still halving the number of sequential probe rounds.
const windowSize = 2

// storage owns the slot array of a table: extent slot words obtained from
// the configured allocator. It is created once at construction and never
// grows.
type storage struct {
	words  []uint64
	extent uint64
}

func newStorage(extent uint64, alloc Allocator) storage {
	return storage{
		words:  alloc.AllocSlots(int(extent)),
		extent: extent,
	}
}

// free returns the slot memory to the allocator. The storage is unusable
// afterwards.
func (s *storage) free(alloc Allocator) {
	if s.words != nil {
		alloc.FreeSlots(s.words)
		s.words = nil
		s.extent = 0
	}
}

// ref returns the non-owning view used by every operator. The ref is a plain
// value (pointer plus extent) and is only valid while the owning storage is
// alive.
func (s *storage) ref() storageRef {
	return storageRef{
		slots:  makeUnsafeSlice(s.words),
		extent: s.extent,
	}
}

// storageRef is a trivially copyable, non-owning view of a slot array. All
// slot accesses go through atomic loads and compare-and-swaps; there is no
// other synchronization.
type storageRef struct {
	slots  unsafeSlice[uint64]
	extent uint64
}

func (r storageRef) numWindows() uint64 {
	return r.extent / windowSize
}

func (r storageRef) load(i uint64) uint64 {
	return atomic.LoadUint64(r.slots.At(uintptr(i)))
}

func (r storageRef) cas(i uint64, old, new uint64) bool {
	return atomic.CompareAndSwapUint64(r.slots.At(uintptr(i)), old, new)
}

func (r storageRef) store(i uint64, w uint64) {
	atomic.StoreUint64(r.slots.At(uintptr(i)), w)
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

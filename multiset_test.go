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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultisetBasic(t *testing.T) {
	m := NewMultiset[int64](1000, emptySentinel)
	defer m.Close()

	// Key k appears k times.
	var keys []int64
	for k := int64(1); k <= 20; k++ {
		for i := int64(0); i < k; i++ {
			keys = append(keys, k)
		}
	}
	m.Insert(keys)
	require.Equal(t, len(keys), m.Size())
	m.checkInvariants()

	for k := int64(1); k <= 20; k++ {
		require.EqualValues(t, k, m.Count([]int64{k}), "key %d", k)
	}
	require.Equal(t, 0, m.Count([]int64{21}))

	// Bulk Count sums per-probe tallies: key k probed k times with k
	// occupied slots contributes k*k.
	var squares int
	for k := 1; k <= 20; k++ {
		squares += k * k
	}
	require.Equal(t, squares, m.Count(keys))

	out := make([]bool, len(keys))
	m.Contains(keys, out)
	for i, ok := range out {
		require.True(t, ok, "key %d", keys[i])
	}
}

func TestMultisetFindAnyMatch(t *testing.T) {
	m := NewMultiset[int64](100, emptySentinel)
	defer m.Close()
	m.Insert([]int64{5, 5, 5, 7})

	// Find on a multiset reports any one of the duplicate slots.
	found := make([]int, 3)
	m.Find([]int64{5, 7, 9}, found)
	require.NotEqual(t, NotFound, found[0])
	require.NotEqual(t, NotFound, found[1])
	require.Equal(t, NotFound, found[2])

	r := m.Ref(OpFind)
	require.Equal(t, found[0], r.Find(5))
}

func TestMultisetConcurrentInsert(t *testing.T) {
	m := NewMultiset[int64](10000, emptySentinel)
	defer m.Close()

	const (
		goroutines = 8
		perKey     = 50
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := m.Ref(OpInsert)
			for k := int64(0); k < 10; k++ {
				for i := 0; i < perKey; i++ {
					r.Insert(k)
				}
			}
		}()
	}
	wg.Wait()

	// Unlike the set, every racing insert lands a distinct slot.
	for k := int64(0); k < 10; k++ {
		require.Equal(t, goroutines*perKey, m.Count([]int64{k}), "key %d", k)
	}
	require.Equal(t, 10*goroutines*perKey, m.Size())
	m.checkInvariants()
}

func TestMultisetEraseDoesNotTruncate(t *testing.T) {
	// A constant hash with linear probing pins every key to the probe
	// sequence starting at window 0, so the slot layout is deterministic:
	// inserts claim slots 0, 1, 2, ...
	m := NewMultiset[int64](8, emptySentinel,
		WithErasedKey[int64](-2),
		WithProbing[int64](LinearProbing{}),
		WithHasher[int64](func(int64, uint64) uint64 { return 0 }))
	defer m.Close()

	m.Insert([]int64{9, 9, 9}) // slots 0, 1, 2
	require.Equal(t, 3, m.Count([]int64{9}))

	// Erase one copy: the middle of the run turns ERASED, not EMPTY, so
	// counting must keep walking past it to the copies beyond.
	r := m.Ref(OpErase | OpCount)
	require.True(t, r.Erase(9))
	require.Equal(t, 2, r.Count(9))
	require.Equal(t, 2, m.Size())

	// A fresh insert reclaims the erased slot.
	m.Insert([]int64{9})
	require.Equal(t, 3, m.Count([]int64{9}))
	m.checkInvariants()
}

func TestMultisetCountWith(t *testing.T) {
	m := NewMultiset[int64](1000, emptySentinel, WithSeed[int64](11))
	defer m.Close()
	m.Insert([]int64{10, 10, 20, -20, 30})

	abs := func(k int64) int64 {
		if k < 0 {
			return -k
		}
		return k
	}
	absHash := func(k int64, seed uint64) uint64 {
		return defaultHasher[int64]()(abs(k), seed)
	}
	absEq := func(probe, stored int64) bool { return abs(probe) == abs(stored) }

	// Signed counting sees 20 and -20 as distinct keys, but they were
	// stored under the absolute-value hash so plain Count cannot probe
	// them. Rebuild with compatible placement.
	m.Clear()
	m.Insert([]int64{10, 10, 20, 20, 30})
	require.Equal(t, 2, m.CountWith([]int64{-20}, absEq, absHash))
	require.Equal(t, 3, m.CountWith([]int64{10, -30, 40}, absEq, absHash))
}

func TestMultisetCountOuter(t *testing.T) {
	m := NewMultiset[int64](1000, emptySentinel)
	defer m.Close()
	m.Insert([]int64{100, 100, 200})

	eq := func(p int32, k int64) bool { return int64(p) == k }
	hash := func(p int32, seed uint64) uint64 {
		return defaultHasher[int64]()(int64(p), seed)
	}

	// Present probes contribute their multiplicity; absent probes still
	// contribute 1.
	probes := []int32{100, 200, 300, 400}
	require.Equal(t, 2+1+1+1, CountOuter(m, probes, eq, hash))
	require.Equal(t, 0, CountOuter(m, nil, eq, hash))
}

func TestMultisetIfVariants(t *testing.T) {
	m := NewMultiset[int64](1000, emptySentinel)
	defer m.Close()

	keys := []int64{7, 7, 7, 8, 8, 9}
	stencil := []int{1, 0, 1, 1, 0, 0}
	odd := func(v int) bool { return v == 1 }

	require.Equal(t, 3, InsertIf(m, keys, stencil, odd))
	require.Equal(t, 2, m.Count([]int64{7}))
	require.Equal(t, 1, m.Count([]int64{8}))
	require.Equal(t, 0, m.Count([]int64{9}))

	out := make([]bool, len(keys))
	ContainsIf(m, keys, stencil, odd, out)
	require.Equal(t, []bool{true, false, true, true, false, false}, out)
}

func TestStencilLengthMismatch(t *testing.T) {
	m := NewMultiset[int64](100, emptySentinel)
	defer m.Close()
	require.Panics(t, func() {
		InsertIf(m, []int64{1, 2}, []int{0}, func(int) bool { return true })
	})
	require.Panics(t, func() {
		ContainsIf(m, []int64{1}, []int{0}, func(int) bool { return true }, make([]bool, 2))
	})
}

func TestMultisetSmallKeyTypes(t *testing.T) {
	m := NewMultiset[uint8](100, 0xff)
	defer m.Close()
	m.Insert([]uint8{1, 1, 2})
	require.Equal(t, 2, m.Count([]uint8{1}))
	require.Equal(t, 1, m.Count([]uint8{2}))

	type pair struct {
		a uint32
		b uint32
	}
	p := NewMultiset[pair](100, pair{a: ^uint32(0), b: ^uint32(0)})
	defer p.Close()
	p.Insert([]pair{{1, 2}, {1, 2}, {3, 4}})
	require.Equal(t, 2, p.Count([]pair{{1, 2}}))
	require.Equal(t, 0, p.Count([]pair{{2, 1}}))
}

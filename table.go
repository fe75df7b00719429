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
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
)

const debug = false

// table is the owning core shared by Set and Multiset: the slot storage, its
// allocator, the probing configuration, the sentinel words, the stream bulk
// operations are sequenced on, and the occupied-slot counter. The exported
// methods defined on table are promoted to both container types.
type table[K comparable] struct {
	storage     storage
	scheme      ProbingScheme
	hash        Hasher[K]
	keyEq       func(a, b K) bool
	seed        uint64
	emptyKey    K
	erasedKey   K
	emptyWord   uint64
	erasedWord  uint64
	hasErased   bool
	allocator   Allocator
	stream      *Stream
	ownStream   bool
	parallelism int
	group       laneGroup
	counter     *stripedCounter
}

// init builds the table from a capacity request and options. Construction
// faults (unrepresentable key type, coinciding sentinels) panic before any
// allocation; everything else about sizing is permissive, including zero or
// negative capacity, which resolves to the scheme's minimum extent.
func (t *table[K]) init(capacity int, emptyKey K, options []Option[K]) {
	checkKeyType[K]()

	var cfg config[K]
	for _, op := range options {
		op.apply(&cfg)
	}

	t.emptyKey = emptyKey
	t.emptyWord = packKey(emptyKey)
	t.erasedWord = t.emptyWord
	if cfg.hasErased {
		t.erasedKey = cfg.erasedKey
		t.erasedWord = packKey(cfg.erasedKey)
		t.hasErased = true
		if t.erasedWord == t.emptyWord {
			panic("conset: empty and erased key sentinels must be bitwise distinct")
		}
	}

	t.scheme = cfg.scheme
	if t.scheme == nil {
		t.scheme = DoubleHashing{}
	}
	t.hash = cfg.hash
	if t.hash == nil {
		t.hash = defaultHasher[K]()
	}
	t.keyEq = cfg.keyEq
	if t.keyEq == nil {
		t.keyEq = func(a, b K) bool { return a == b }
	}
	t.allocator = cfg.allocator
	if t.allocator == nil {
		t.allocator = defaultAllocator{}
	}
	t.seed = cfg.seed
	if !cfg.hasSeed {
		t.seed = rand.Uint64()
	}
	width := cfg.groupWidth
	if width < 1 {
		width = 1
	}
	if width > windowSize {
		width = windowSize
	}
	t.group = laneGroup{width: width}
	t.parallelism = cfg.parallelism
	if t.parallelism <= 0 {
		t.parallelism = runtime.GOMAXPROCS(0)
	}

	extent := resolveExtent(capacity, cfg.loadFactor, t.scheme, windowSize, width)
	t.storage = newStorage(extent, t.allocator)
	// Slots start at the empty sentinel's bit pattern, which is not
	// necessarily zero. The table is unpublished here, so plain stores
	// suffice.
	for i := range t.storage.words {
		t.storage.words[i] = t.emptyWord
	}

	t.stream = cfg.stream
	if t.stream == nil {
		t.stream = NewStream()
		t.ownStream = true
	}
	t.counter = newStripedCounter()

	t.checkInvariants()
}

// ref assembles the non-owning operator view. The 1-sentinel versus
// 2-sentinel slot layout is chosen here by bitwise comparison of the two
// sentinel words, exactly once per ref.
func (t *table[K]) ref(ops OpSet) tableRef[K] {
	if ops == 0 {
		panic("conset: ref requires a non-empty operator set")
	}
	return tableRef[K]{
		storage:     t.storage.ref(),
		scheme:      t.scheme,
		hash:        t.hash,
		keyEq:       t.keyEq,
		seed:        t.seed,
		emptyWord:   t.emptyWord,
		erasedWord:  t.erasedWord,
		twoSentinel: t.emptyWord != t.erasedWord,
		group:       t.group,
		counter:     t.counter,
		ops:         ops,
	}
}

// opRef is the all-operators ref the bulk dispatch paths run on.
func (t *table[K]) opRef() tableRef[K] {
	return t.ref(OpInsert | OpContains | OpFind | OpCount | OpErase)
}

func (t *table[K]) submit(task func()) {
	t.stream.Submit(task)
}

func (t *table[K]) wait() {
	t.stream.Wait()
}

// fanout splits n logical operations into contiguous chunks across at most
// parallelism goroutines and blocks until all chunks complete. It runs
// inside a stream task, so stream ordering is preserved across bulk calls.
func (t *table[K]) fanout(n int, fn func(lo, hi int)) {
	p := t.parallelism
	if p > n {
		p = n
	}
	if p <= 1 {
		if n > 0 {
			fn(0, n)
		}
		return
	}
	chunk := (n + p - 1) / p
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}

// insertBulk dispatches one insert per key and returns the number of keys
// newly placed. The per-key outcome slice is optional.
func (t *table[K]) insertBulk(keys []K, unique bool, each []bool) int {
	var inserted atomic.Int64
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				ok := r.insert(keys[i], unique)
				if each != nil {
					each[i] = ok
				}
				if ok {
					n++
				}
			}
			inserted.Add(n)
		})
	})
	t.wait()
	return int(inserted.Load())
}

func (t *table[K]) insertBulkAsync(keys []K, unique bool) {
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				r.insert(keys[i], unique)
			}
		})
	})
}

// containsKey is the single-key hook the stencil dispatch helpers run
// through; its insert counterpart lives on the container types, which pick
// unique versus multiset semantics.
func (t *table[K]) containsKey(r *tableRef[K], key K) bool {
	_, ok := r.lookup(r.probe(key), r.matchKey(key))
	return ok
}

// ContainsAsync writes, for each key, whether it is a member into the
// corresponding element of out. out is undefined until the stream is
// waited on.
func (t *table[K]) ContainsAsync(keys []K, out []bool) {
	checkOutput(len(keys), len(out))
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = t.containsKey(&r, keys[i])
			}
		})
	})
}

// Contains is the synchronous form of ContainsAsync.
func (t *table[K]) Contains(keys []K, out []bool) {
	t.ContainsAsync(keys, out)
	t.wait()
}

// FindAsync writes the slot index of each key into out, or NotFound for
// absent keys. out is undefined until the stream is waited on.
func (t *table[K]) FindAsync(keys []K, out []int) {
	checkOutput(len(keys), len(out))
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i], _ = r.lookup(r.probe(keys[i]), r.matchKey(keys[i]))
			}
		})
	})
}

// Find is the synchronous form of FindAsync.
func (t *table[K]) Find(keys []K, out []int) {
	t.FindAsync(keys, out)
	t.wait()
}

// Erase marks one occupied slot per matching key as erased and returns the
// number of keys erased. It panics unless an erased key sentinel was
// configured.
func (t *table[K]) Erase(keys []K) int {
	t.requireErased()
	var erased atomic.Int64
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				if r.erase(keys[i]) {
					n++
				}
			}
			erased.Add(n)
		})
	})
	t.wait()
	return int(erased.Load())
}

// EraseAsync is the non-blocking form of Erase.
func (t *table[K]) EraseAsync(keys []K) {
	t.requireErased()
	t.submit(func() {
		r := t.opRef()
		t.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				r.erase(keys[i])
			}
		})
	})
}

func (t *table[K]) requireErased() {
	if !t.hasErased {
		panic("conset: erase requires an erased key sentinel")
	}
}

// ClearAsync resets every slot to the empty sentinel without reallocating.
// The caller must ensure no operation is in flight on the table outside
// this stream.
func (t *table[K]) ClearAsync() {
	t.submit(func() {
		r := t.storage.ref()
		t.fanout(int(t.storage.extent), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				r.store(uint64(i), t.emptyWord)
			}
		})
		t.counter.reset()
	})
}

// Clear is the synchronous form of ClearAsync.
func (t *table[K]) Clear() {
	t.ClearAsync()
	t.wait()
}

// Size returns the number of occupied slots. It waits for all work
// previously submitted to the stream, so it is itself a synchronizing
// operation.
func (t *table[K]) Size() int {
	t.wait()
	return int(t.counter.sum())
}

// Capacity returns the resolved extent: the total number of slots.
func (t *table[K]) Capacity() int {
	return int(t.storage.extent)
}

// EmptyKeySentinel returns the reserved key marking empty slots.
func (t *table[K]) EmptyKeySentinel() K {
	return t.emptyKey
}

// ErasedKeySentinel returns the reserved key marking erased slots and
// whether one was configured.
func (t *table[K]) ErasedKeySentinel() (K, bool) {
	return t.erasedKey, t.hasErased
}

// Stream returns the stream the container's bulk operations run on.
func (t *table[K]) Stream() *Stream {
	return t.stream
}

// Keys calls yield for every occupied key until yield returns false. It
// synchronizes the stream first; concurrent mutation during iteration gives
// an unspecified snapshot.
func (t *table[K]) Keys(yield func(key K) bool) {
	t.wait()
	r := t.storage.ref()
	for i := uint64(0); i < t.storage.extent; i++ {
		w := r.load(i)
		if w == t.emptyWord || (t.hasErased && w == t.erasedWord) {
			continue
		}
		if !yield(unpackKey[K](w)) {
			return
		}
	}
}

// Close waits for in-flight work, releases the slot memory back to the
// configured allocator, and stops the container's private stream if it owns
// one. Any ref built from the container is invalid afterwards.
func (t *table[K]) Close() {
	t.wait()
	if t.ownStream {
		t.stream.Close()
	}
	t.storage.free(t.allocator)
}

func (t *table[K]) checkInvariants() {
	if invariants {
		if t.storage.extent%windowSize != 0 {
			panic(fmt.Sprintf("invariant failed: extent %d is not a multiple of the window size", t.storage.extent))
		}
		if t.hasErased && t.emptyWord == t.erasedWord {
			panic("invariant failed: sentinel words coincide")
		}
		var occupied int64
		r := t.storage.ref()
		for i := uint64(0); i < t.storage.extent; i++ {
			w := r.load(i)
			if w != t.emptyWord && !(t.hasErased && w == t.erasedWord) {
				occupied++
			}
		}
		if sum := t.counter.sum(); sum != occupied {
			panic(fmt.Sprintf("invariant failed: counter is %d but %d slots are occupied", sum, occupied))
		}
	}
}

func checkOutput(in, out int) {
	if out < in {
		panic(fmt.Sprintf("conset: output length %d shorter than input length %d", out, in))
	}
}

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

import "fmt"

// OpSet is the set of operators a ref was requested with. Invoking an
// operator the ref was not built for panics; a ref built with no operators
// at all is a usage error rejected at construction.
type OpSet uint8

const (
	OpInsert OpSet = 1 << iota
	OpContains
	OpFind
	OpCount
	OpErase
)

// NotFound is returned by Find for keys with no occupied slot.
const NotFound = -1

// tableRef is the non-owning core shared by SetRef and MultisetRef: a
// storage view plus copies of the stateless probing scheme, hasher and
// equality predicate, the sentinel words, and the requested operator set.
// It is a plain value with no lifetime tracking; it must not outlive the
// container it was built from.
//
// Every operator below is a walk of one probe sequence applying atomic
// loads and compare-and-swaps to one window at a time. There are no locks
// and no blocking waits: races between writers are settled solely by CAS
// outcome, which keeps the final membership deterministic for a fixed input
// set even though the winning thread is not.
type tableRef[K comparable] struct {
	storage     storageRef
	scheme      ProbingScheme
	hash        Hasher[K]
	keyEq       func(a, b K) bool
	seed        uint64
	emptyWord   uint64
	erasedWord  uint64
	twoSentinel bool
	group       laneGroup
	counter     *stripedCounter
	ops         OpSet
}

func (r *tableRef[K]) requireOp(op OpSet, name string) {
	if r.ops&op == 0 {
		panic(fmt.Sprintf("conset: %s operator was not requested for this ref", name))
	}
}

// probe starts the key's probe sequence using the ref's hasher. The second
// hash for double hashing comes from the same hasher under a perturbed
// seed.
func (r *tableRef[K]) probe(key K) probeSeq {
	h1 := r.hash(key, r.seed)
	h2 := r.hash(key, r.seed^stepSeed)
	return r.scheme.seq(h1, h2, r.storage.numWindows())
}

// vacant reports whether a slot word is claimable: empty, or erased under
// the two-sentinel layout. Sentinels compare by raw bit pattern, never via
// the key predicate, so probing recognizes structurally empty slots
// independent of key semantics.
func (r *tableRef[K]) vacant(w uint64) bool {
	return w == r.emptyWord || (r.twoSentinel && w == r.erasedWord)
}

// insert walks the probe sequence and claims the first vacant slot with a
// compare-and-swap from the sentinel word to the key word. When unique is
// set, a predicate-equal occupied key found along the way means the key is
// already a member and nothing is inserted. A failed CAS means another
// goroutine changed the slot first; the slot's new content is re-examined
// before moving on, so a racing duplicate is always observed.
//
// Returning false with unique means "already present". Returning false
// after exhausting the extent means the table is overfull, which is a
// sizing precondition violation rather than a recoverable error.
func (r *tableRef[K]) insert(key K, unique bool) bool {
	word := packKey(key)
	for seq := r.probe(key); !seq.done(); seq = seq.next() {
		base := seq.offset * windowSize
		for j := uint64(0); j < windowSize; j++ {
			i := base + j
			for {
				w := r.storage.load(i)
				if r.vacant(w) {
					if r.storage.cas(i, w, word) {
						r.counter.add(i, 1)
						if debug {
							fmt.Printf("insert: claimed slot %d (%s)\n", i, seq)
						}
						return true
					}
					continue
				}
				if unique && r.keyEq(unpackKey[K](w), key) {
					return false
				}
				break
			}
		}
	}
	return false
}

// lookup walks the probe sequence and returns the index of the first slot
// whose occupied key satisfies match. An empty slot terminates the scan with
// no result; an erased slot does not, because matches may lie beyond it.
// Each window is inspected as one unit by the lane group: the window's
// matches are balloted before its empties are allowed to terminate.
func (r *tableRef[K]) lookup(seq probeSeq, match func(stored K) bool) (int, bool) {
	for ; !seq.done(); seq = seq.next() {
		base := seq.offset * windowSize
		var win [windowSize]uint64
		r.group.each(windowSize, func(s uint32) {
			win[s] = r.storage.load(base + uint64(s))
		})
		matches := r.group.ballot(windowSize, func(s uint32) bool {
			w := win[s]
			return !r.vacant(w) && match(unpackKey[K](w))
		})
		if matches != 0 {
			return int(base + uint64(matches.first())), true
		}
		empties := r.group.ballot(windowSize, func(s uint32) bool {
			return win[s] == r.emptyWord
		})
		if empties != 0 {
			return NotFound, false
		}
	}
	return NotFound, false
}

// countMatches accumulates match counts past the first hit, terminating only
// when a window holds a true empty slot. Matches within the terminating
// window are still counted, so an erased duplicate never truncates the tally
// of occupied duplicates reachable later in the sequence.
func (r *tableRef[K]) countMatches(seq probeSeq, match func(stored K) bool) int {
	n := 0
	for ; !seq.done(); seq = seq.next() {
		base := seq.offset * windowSize
		var win [windowSize]uint64
		r.group.each(windowSize, func(s uint32) {
			win[s] = r.storage.load(base + uint64(s))
		})
		matches := r.group.ballot(windowSize, func(s uint32) bool {
			w := win[s]
			return !r.vacant(w) && match(unpackKey[K](w))
		})
		n += matches.count()
		empties := r.group.ballot(windowSize, func(s uint32) bool {
			return win[s] == r.emptyWord
		})
		if empties != 0 {
			return n
		}
	}
	return n
}

// erase transitions the first slot matching key from occupied to the erased
// sentinel. Like lookup, the scan stops at an empty slot but not at an
// erased one. A failed CAS re-inspects the window: the matched slot may have
// been erased or overwritten by a racing operation.
func (r *tableRef[K]) erase(key K) bool {
	if !r.twoSentinel {
		panic("conset: erase requires an erased key sentinel")
	}
	for seq := r.probe(key); !seq.done(); seq = seq.next() {
		base := seq.offset * windowSize
		for {
			var win [windowSize]uint64
			r.group.each(windowSize, func(s uint32) {
				win[s] = r.storage.load(base + uint64(s))
			})
			matches := r.group.ballot(windowSize, func(s uint32) bool {
				w := win[s]
				return !r.vacant(w) && r.keyEq(unpackKey[K](w), key)
			})
			if matches != 0 {
				s := matches.first()
				i := base + uint64(s)
				if r.storage.cas(i, win[s], r.erasedWord) {
					r.counter.add(i, -1)
					return true
				}
				continue
			}
			empties := r.group.ballot(windowSize, func(s uint32) bool {
				return win[s] == r.emptyWord
			})
			if empties != 0 {
				return false
			}
			break
		}
	}
	return false
}

func (r *tableRef[K]) matchKey(key K) func(K) bool {
	return func(stored K) bool {
		return r.keyEq(stored, key)
	}
}

// SetRef is a non-owning, trivially copyable view over a Set for use inside
// arbitrary goroutines, including nested in other parallel algorithms. It
// shares the container's slots; it holds no lifetime and must not be used
// after the container is closed.
type SetRef[K comparable] struct {
	ref tableRef[K]
}

// Insert adds key if it is not already a member. It reports whether the key
// was newly inserted; false for a duplicate is a routine outcome, not an
// error.
func (r SetRef[K]) Insert(key K) bool {
	r.ref.requireOp(OpInsert, "insert")
	return r.ref.insert(key, true)
}

// Contains reports whether a key equal to key is a member.
func (r SetRef[K]) Contains(key K) bool {
	r.ref.requireOp(OpContains, "contains")
	_, ok := r.ref.lookup(r.ref.probe(key), r.ref.matchKey(key))
	return ok
}

// Find returns the slot index holding a key equal to key, or NotFound.
func (r SetRef[K]) Find(key K) int {
	r.ref.requireOp(OpFind, "find")
	i, _ := r.ref.lookup(r.ref.probe(key), r.ref.matchKey(key))
	return i
}

// Erase marks one occupied slot equal to key as erased. It reports whether
// a slot was erased; erasing an absent key is a no-op.
func (r SetRef[K]) Erase(key K) bool {
	r.ref.requireOp(OpErase, "erase")
	return r.ref.erase(key)
}

// WithKeyEq returns a copy of the ref probing with a different equality
// predicate. The container is not mutated.
func (r SetRef[K]) WithKeyEq(eq func(a, b K) bool) SetRef[K] {
	r.ref.keyEq = eq
	return r
}

// WithHasher returns a copy of the ref probing with a different hasher. The
// container is not mutated.
func (r SetRef[K]) WithHasher(hash Hasher[K]) SetRef[K] {
	r.ref.hash = hash
	return r
}

// MultisetRef is the multiset counterpart of SetRef: insert never checks for
// duplicates, and Count tallies every matching slot along the probe
// sequence.
type MultisetRef[K comparable] struct {
	ref tableRef[K]
}

// Insert places key into the first vacant slot of its probe sequence. Equal
// keys legitimately occupy distinct slots. It returns false only when the
// extent is exhausted, which means the table was undersized for the
// workload.
func (r MultisetRef[K]) Insert(key K) bool {
	r.ref.requireOp(OpInsert, "insert")
	return r.ref.insert(key, false)
}

// Contains reports whether at least one key equal to key is a member.
func (r MultisetRef[K]) Contains(key K) bool {
	r.ref.requireOp(OpContains, "contains")
	_, ok := r.ref.lookup(r.ref.probe(key), r.ref.matchKey(key))
	return ok
}

// Find returns the slot index of one key equal to key, or NotFound.
func (r MultisetRef[K]) Find(key K) int {
	r.ref.requireOp(OpFind, "find")
	i, _ := r.ref.lookup(r.ref.probe(key), r.ref.matchKey(key))
	return i
}

// Count returns the number of occupied slots equal to key.
func (r MultisetRef[K]) Count(key K) int {
	r.ref.requireOp(OpCount, "count")
	return r.ref.countMatches(r.ref.probe(key), r.ref.matchKey(key))
}

// Erase marks one occupied slot equal to key as erased, leaving any other
// duplicates in place.
func (r MultisetRef[K]) Erase(key K) bool {
	r.ref.requireOp(OpErase, "erase")
	return r.ref.erase(key)
}

// WithKeyEq returns a copy of the ref probing with a different equality
// predicate.
func (r MultisetRef[K]) WithKeyEq(eq func(a, b K) bool) MultisetRef[K] {
	r.ref.keyEq = eq
	return r
}

// WithHasher returns a copy of the ref probing with a different hasher.
func (r MultisetRef[K]) WithHasher(hash Hasher[K]) MultisetRef[K] {
	r.ref.hash = hash
	return r
}

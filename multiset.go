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

import "sync/atomic"

// Multiset is a fixed-capacity concurrent multiset: equal keys legitimately
// occupy distinct slots, and Count reports how many.
type Multiset[K comparable] struct {
	table[K]
}

// NewMultiset creates a multiset able to hold capacity keys (duplicates
// included), with emptyKey reserved as the sentinel for empty slots.
func NewMultiset[K comparable](capacity int, emptyKey K, options ...Option[K]) *Multiset[K] {
	m := &Multiset[K]{}
	m.init(capacity, emptyKey, options)
	return m
}

// Insert places every key into the first vacant slot of its probe sequence,
// with no duplicate check, and blocks until all keys are placed. Inserting
// more keys than the table can hold is a sizing precondition violation; the
// overflow keys are silently not placed.
func (m *Multiset[K]) Insert(keys []K) {
	m.insertBulk(keys, false, nil)
}

// InsertAsync submits the inserts to the multiset's stream and returns
// immediately.
func (m *Multiset[K]) InsertAsync(keys []K) {
	m.insertBulkAsync(keys, false)
}

// Count returns the total number of occupied slots matching any of the
// probe keys. A key inserted n times contributes n.
func (m *Multiset[K]) Count(keys []K) int {
	r := m.opRef()
	return m.countBulk(keys, func(key K) probeSeq {
		return r.probe(key)
	}, func(key K) func(K) bool {
		return r.matchKey(key)
	}, false)
}

// CountWith is Count with a per-call equality predicate and hasher replacing
// the table's defaults for the duration of the call. The table itself is
// not mutated.
func (m *Multiset[K]) CountWith(keys []K, eq func(probe, stored K) bool, hash Hasher[K]) int {
	r := m.opRef()
	windows := r.storage.numWindows()
	return m.countBulk(keys, func(key K) probeSeq {
		h1 := hash(key, r.seed)
		h2 := hash(key, r.seed^stepSeed)
		return r.scheme.seq(h1, h2, windows)
	}, func(key K) func(K) bool {
		return func(stored K) bool { return eq(key, stored) }
	}, false)
}

// countBulk runs the counting scan for every probe key, adding one for
// absent keys when outer is set (join-style counting).
func (m *Multiset[K]) countBulk(keys []K, seqOf func(K) probeSeq, matchOf func(K) func(K) bool, outer bool) int {
	var total atomic.Int64
	m.submit(func() {
		r := m.opRef()
		m.fanout(len(keys), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				c := r.countMatches(seqOf(keys[i]), matchOf(keys[i]))
				if c == 0 && outer {
					c = 1
				}
				n += int64(c)
			}
			total.Add(n)
		})
	})
	m.wait()
	return int(total.Load())
}

// Ref returns a non-owning view with the requested operators for use inside
// parallel code.
func (m *Multiset[K]) Ref(ops OpSet) MultisetRef[K] {
	return MultisetRef[K]{ref: m.ref(ops)}
}

func (m *Multiset[K]) insertOne(r *tableRef[K], key K) bool {
	return r.insert(key, false)
}

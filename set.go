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

// Package conset provides fixed-capacity, lock-free, open-addressing
// concurrent containers: a unique-key Set and a duplicate-permitting
// Multiset, built on one shared probing engine.
//
// # Design
//
// A table is a flat array of 64-bit slot words allocated once at
// construction; there is no resizing. Each slot holds either the raw bit
// pattern of a key or one of up to two reserved sentinel patterns: empty
// (always present) and erased (optional, enabling deletion). Sentinels are
// always recognized by bitwise comparison, never by the user-supplied
// equality predicate, so probing can tell a structurally empty slot apart
// from an occupied one regardless of key semantics.
//
// Slots are grouped into fixed-size windows probed together as one unit. A
// probing scheme (linear or double hashing) maps a key to a deterministic
// sequence of window indices with full period: resolved capacities are
// rounded so the sequence visits every window before repeating. Within a
// window, a fixed-width lane group inspects the slots and combines the
// verdicts into a bitset.
//
// All mutation is by compare-and-swap on a single slot word. Inserting
// claims the first vacant slot along the key's probe sequence; losing a CAS
// race means re-examining the slot's new content, so concurrently inserting
// the same key into a Set yields exactly one membership no matter how many
// goroutines race. Lookups stop at the first truly empty slot; erased slots
// do not stop a scan, since duplicates may lie beyond them.
//
// # Bulk operations and streams
//
// The containers expose host-style bulk operations: each call dispatches one
// logical operation per input key across a bounded set of goroutines. Calls
// come in synchronous and Async flavors. Async forms submit work to the
// container's Stream, a FIFO queue, and return immediately; their outputs
// are undefined until the stream is waited on. Synchronous forms are the
// Async form followed by a wait. For fine-grained use inside existing
// parallel code, Ref returns a trivially copyable view exposing the same
// operators per key.
//
// # Preconditions
//
// For throughput the hot paths check nothing that is the caller's to
// guarantee: inserting a reserved sentinel value, inserting past capacity,
// clearing concurrently with mutators, or using a ref after its container
// is closed are all undefined behavior. Construction, by contrast, fails
// fast: key types wider than a slot word or without a stable bit-pattern
// representation, and coinciding sentinels, panic before allocation.
package conset

// Set is a fixed-capacity concurrent set of unique keys. All operations are
// safe for concurrent use; inserts that lose a race to an equal key report
// "not inserted" rather than creating a duplicate.
type Set[K comparable] struct {
	table[K]
}

// NewSet creates a set able to hold capacity keys, with emptyKey reserved
// as the never-inserted sentinel for empty slots. The resolved capacity is
// at least the request, rounded up to satisfy the probing scheme; a zero or
// negative request resolves to the scheme's minimum. The set never grows.
func NewSet[K comparable](capacity int, emptyKey K, options ...Option[K]) *Set[K] {
	s := &Set[K]{}
	s.init(capacity, emptyKey, options)
	return s
}

// Insert adds each key not already a member and returns the number of keys
// newly inserted. Duplicates within the input or already present count as
// not inserted. The call blocks until all keys are placed.
func (s *Set[K]) Insert(keys []K) int {
	return s.insertBulk(keys, true, nil)
}

// InsertAsync submits the inserts to the set's stream and returns
// immediately.
func (s *Set[K]) InsertAsync(keys []K) {
	s.insertBulkAsync(keys, true)
}

// InsertEach is Insert with per-key outcomes: inserted[i] reports whether
// keys[i] was newly placed.
func (s *Set[K]) InsertEach(keys []K, inserted []bool) int {
	checkOutput(len(keys), len(inserted))
	return s.insertBulk(keys, true, inserted)
}

// Ref returns a non-owning view with the requested operators for use inside
// parallel code. The ref shares the set's slots and is valid only while the
// set is alive.
func (s *Set[K]) Ref(ops OpSet) SetRef[K] {
	return SetRef[K]{ref: s.ref(ops)}
}

func (s *Set[K]) insertOne(r *tableRef[K], key K) bool {
	return r.insert(key, true)
}

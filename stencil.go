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

// The If variants filter which input elements participate in a bulk call
// through a parallel stencil sequence: keys[i] takes part only when
// pred(stencil[i]) holds. Stencil element types are independent of the key
// type, so these live as package-level generic functions over either
// container.

// container abstracts Set and Multiset for the stencil dispatch helpers.
type container[K comparable] interface {
	*Set[K] | *Multiset[K]
	opRef() tableRef[K]
	insertOne(r *tableRef[K], key K) bool
	containsKey(r *tableRef[K], key K) bool
	requireErased()
	submit(task func())
	wait()
	fanout(n int, fn func(lo, hi int))
}

// InsertIf inserts keys[i] for every i where pred(stencil[i]) holds and
// returns the number of keys newly placed. Non-participating keys are left
// untouched. Set semantics or multiset semantics follow the container.
func InsertIf[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool) int {
	checkStencil(len(keys), len(stencil))
	var inserted atomic.Int64
	c.submit(func() {
		r := c.opRef()
		c.fanout(len(keys), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				if pred(stencil[i]) && c.insertOne(&r, keys[i]) {
					n++
				}
			}
			inserted.Add(n)
		})
	})
	c.wait()
	return int(inserted.Load())
}

// InsertIfAsync is the non-blocking form of InsertIf.
func InsertIfAsync[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool) {
	checkStencil(len(keys), len(stencil))
	c.submit(func() {
		r := c.opRef()
		c.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if pred(stencil[i]) {
					c.insertOne(&r, keys[i])
				}
			}
		})
	})
}

// ContainsIf writes membership of keys[i] into out[i] for every
// participating i. Outputs of non-participating elements are left
// unwritten.
func ContainsIf[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool, out []bool) {
	ContainsIfAsync(c, keys, stencil, pred, out)
	c.wait()
}

// ContainsIfAsync is the non-blocking form of ContainsIf.
func ContainsIfAsync[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool, out []bool) {
	checkStencil(len(keys), len(stencil))
	checkOutput(len(keys), len(out))
	c.submit(func() {
		r := c.opRef()
		c.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if pred(stencil[i]) {
					out[i] = c.containsKey(&r, keys[i])
				}
			}
		})
	})
}

// EraseIf erases one matching slot for keys[i] at every i where
// pred(stencil[i]) holds and returns the number of keys erased. It panics
// unless the container was built with an erased key sentinel.
func EraseIf[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool) int {
	checkStencil(len(keys), len(stencil))
	c.requireErased()
	var erased atomic.Int64
	c.submit(func() {
		r := c.opRef()
		c.fanout(len(keys), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				if pred(stencil[i]) && r.erase(keys[i]) {
					n++
				}
			}
			erased.Add(n)
		})
	})
	c.wait()
	return int(erased.Load())
}

// EraseIfAsync is the non-blocking form of EraseIf.
func EraseIfAsync[K comparable, S any, C container[K]](c C, keys []K, stencil []S, pred func(S) bool) {
	checkStencil(len(keys), len(stencil))
	c.requireErased()
	c.submit(func() {
		r := c.opRef()
		c.fanout(len(keys), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if pred(stencil[i]) {
					r.erase(keys[i])
				}
			}
		})
	})
}

// CountOuter counts, for each probe element, the occupied slots matching it
// under a caller-supplied cross-type equality predicate and hasher; probe
// elements with no match contribute one, the outer-join convention. The
// probe type may differ from the stored key type entirely.
func CountOuter[K comparable, P any](m *Multiset[K], probes []P, eq func(probe P, stored K) bool, hash Hasher[P]) int {
	r := m.opRef()
	windows := r.storage.numWindows()
	var total atomic.Int64
	m.submit(func() {
		m.fanout(len(probes), func(lo, hi int) {
			var n int64
			for i := lo; i < hi; i++ {
				p := probes[i]
				h1 := hash(p, r.seed)
				h2 := hash(p, r.seed^stepSeed)
				seq := r.scheme.seq(h1, h2, windows)
				c := r.countMatches(seq, func(stored K) bool {
					return eq(p, stored)
				})
				if c == 0 {
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

func checkStencil(keys, stencil int) {
	if stencil < keys {
		panic("conset: stencil shorter than input")
	}
}

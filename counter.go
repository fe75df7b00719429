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
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// counterStripe holds one shard of the occupied-slot counter, padded to a
// cache line so that concurrent inserts hitting different stripes do not
// false-share.
type counterStripe struct {
	c uint64
	_ cpu.CacheLinePad
}

// stripedCounter counts occupied slots. Writers pick a stripe from the slot
// index they just claimed, spreading contention; sum folds the stripes.
// Negative deltas rely on two's-complement wraparound, so the total is exact
// as long as it never goes below zero, which successful insert/erase
// accounting guarantees.
type stripedCounter struct {
	stripes []counterStripe
	mask    uint64
}

func newStripedCounter() *stripedCounter {
	n := nextPowOf2(runtime.GOMAXPROCS(0))
	return &stripedCounter{
		stripes: make([]counterStripe, n),
		mask:    uint64(n - 1),
	}
}

func (c *stripedCounter) add(slot uint64, delta int64) {
	atomic.AddUint64(&c.stripes[slot&c.mask].c, uint64(delta))
}

func (c *stripedCounter) sum() int64 {
	var sum uint64
	for i := range c.stripes {
		sum += atomic.LoadUint64(&c.stripes[i].c)
	}
	return int64(sum)
}

// reset zeroes every stripe. Callers must guarantee no concurrent writers,
// the same exclusivity clear itself requires.
func (c *stripedCounter) reset() {
	for i := range c.stripes {
		atomic.StoreUint64(&c.stripes[i].c, 0)
	}
}

func nextPowOf2(n int) int {
	if n <= 1 {
		return 1
	}
	v := 1
	for v < n {
		v <<= 1
	}
	return v
}

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
	"math/bits"
	"strings"
)

// laneGroup is a fixed-width group of lanes that jointly inspects one window
// per probe step. Lane l handles slots l, l+width, l+2*width, ... of the
// window, and per-lane verdicts are combined into a bitset via ballot. With
// width 1 a single lane walks the window sequentially.
//
// Within one goroutine the lanes execute as loop iterations; the type exists
// so that the operators are written against an explicit inspect/ballot
// primitive instead of inlining group coordination at every probe site.
type laneGroup struct {
	width uint32
}

// each runs body once per slot of an n-slot window, in lane order.
func (g laneGroup) each(n uint32, body func(slot uint32)) {
	for lane := uint32(0); lane < g.width; lane++ {
		for slot := lane; slot < n; slot += g.width {
			body(slot)
		}
	}
}

// ballot reduces per-slot verdicts over an n-slot window into a bitset with
// bit i set iff pred holds for slot i.
func (g laneGroup) ballot(n uint32, pred func(slot uint32) bool) bitset {
	var b bitset
	g.each(n, func(slot uint32) {
		if pred(slot) {
			b |= 1 << slot
		}
	})
	return b
}

// bitset is the combined verdict of a window inspection, one bit per slot.
type bitset uint32

// first returns the index of the lowest set bit.
func (b bitset) first() uint32 {
	return uint32(bits.TrailingZeros32(uint32(b)))
}

func (b bitset) remove(i uint32) bitset {
	return b &^ (1 << i)
}

func (b bitset) count() int {
	return bits.OnesCount32(uint32(b))
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(windowSize)
	for i := 0; i < windowSize; i++ {
		if b&(1<<i) != 0 {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}

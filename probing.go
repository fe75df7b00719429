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

// ProbingScheme generates the sequence of windows to examine for a key. A
// scheme is pure and stateless: the sequence is fully determined by the
// key's hashes and the table's window count, so any number of goroutines can
// share one scheme value. The set of schemes is closed; both are cheap value
// types selected at construction.
type ProbingScheme interface {
	// extentFor returns the smallest valid slot count >= target that
	// guarantees the scheme's probe sequences visit every window of a
	// table with windows of ws slots probed by groups of gw lanes.
	extentFor(target uint64, ws, gw uint32) uint64

	// seq starts a probe sequence over numWindows windows from the two
	// hash values of a key. Linear probing ignores h2.
	seq(h1, h2, numWindows uint64) probeSeq
}

// LinearProbing probes windows h1, h1+1, h1+2, ... (mod the window count).
// Cheapest per step and fine at moderate load factors, but vulnerable to
// clustering under weak hash distributions.
type LinearProbing struct{}

func (LinearProbing) extentFor(target uint64, ws, gw uint32) uint64 {
	// Any multiple of the window-group footprint covers the table, since
	// the stride is one window.
	return roundUpMultiple(target, uint64(ws)*uint64(gw))
}

func (LinearProbing) seq(h1, _, numWindows uint64) probeSeq {
	return probeSeq{
		offset:  h1 % numWindows,
		step:    1,
		windows: numWindows,
	}
}

// DoubleHashing probes windows h1, h1+s, h1+2s, ... (mod the window count)
// with a per-key stride s derived from h2. Resolved extents hold a prime
// number of windows, so every non-zero stride walks the whole table before
// repeating. This is the default scheme.
type DoubleHashing struct{}

func (DoubleHashing) extentFor(target uint64, ws, _ uint32) uint64 {
	// The window count must be prime so that any stride in [1, windows)
	// is coprime to it, giving every probe sequence full period.
	windows := (target + uint64(ws) - 1) / uint64(ws)
	return uint64(ws) * nextPrime(windows)
}

func (DoubleHashing) seq(h1, h2, numWindows uint64) probeSeq {
	var step uint64
	if numWindows > 1 {
		// Map h2 into [1, windows) so the stride is never zero.
		step = h2%(numWindows-1) + 1
	}
	return probeSeq{
		offset:  h1 % numWindows,
		step:    step,
		windows: numWindows,
	}
}

// probeSeq maintains the state of one probe sequence: the current window
// index, the per-key stride, and the number of steps taken. It is a value
// type; next returns the advanced copy. The sequence is exhausted once it
// has produced every window index exactly once.
type probeSeq struct {
	offset  uint64
	step    uint64
	windows uint64
	index   uint64
}

func (s probeSeq) next() probeSeq {
	s.offset = (s.offset + s.step) % s.windows
	s.index++
	return s
}

// done reports whether every window has been visited.
func (s probeSeq) done() bool {
	return s.index >= s.windows
}

func (s probeSeq) String() string {
	return fmt.Sprintf("offset=%d step=%d windows=%d index=%d", s.offset, s.step, s.windows, s.index)
}

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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// genSeq collects every window index a probe sequence produces before it is
// exhausted.
func genSeq(scheme ProbingScheme, h1, h2, numWindows uint64) []uint64 {
	var vals []uint64
	for seq := scheme.seq(h1, h2, numWindows); !seq.done(); seq = seq.next() {
		vals = append(vals, seq.offset)
	}
	return vals
}

func requireFullPeriod(t *testing.T, vals []uint64, numWindows uint64) {
	t.Helper()
	require.Len(t, vals, int(numWindows))
	seen := make(map[uint64]bool, len(vals))
	for _, v := range vals {
		require.Less(t, v, numWindows)
		require.False(t, seen[v], "window %d visited twice", v)
		seen[v] = true
	}
}

func TestLinearProbingFullPeriod(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, numWindows := range []uint64{1, 2, 3, 8, 97, 256} {
		t.Run(fmt.Sprintf("windows=%d", numWindows), func(t *testing.T) {
			for i := 0; i < 20; i++ {
				vals := genSeq(LinearProbing{}, rng.Uint64(), rng.Uint64(), numWindows)
				requireFullPeriod(t, vals, numWindows)
			}
		})
	}
}

func TestDoubleHashingFullPeriod(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	// Double hashing guarantees full period only for the prime window
	// counts the extent resolver produces.
	for _, numWindows := range []uint64{2, 3, 5, 11, 211, 251} {
		t.Run(fmt.Sprintf("windows=%d", numWindows), func(t *testing.T) {
			for i := 0; i < 20; i++ {
				vals := genSeq(DoubleHashing{}, rng.Uint64(), rng.Uint64(), numWindows)
				requireFullPeriod(t, vals, numWindows)
			}
		})
	}
}

func TestDoubleHashingDistinctStrides(t *testing.T) {
	// Two keys sharing h1 but differing in h2 must diverge after the
	// first window.
	a := genSeq(DoubleHashing{}, 7, 1, 11)
	b := genSeq(DoubleHashing{}, 7, 2, 11)
	require.Equal(t, a[0], b[0])
	require.NotEqual(t, a[1], b[1])
}

func TestProbeSeqDeterministic(t *testing.T) {
	for _, scheme := range []ProbingScheme{LinearProbing{}, DoubleHashing{}} {
		a := genSeq(scheme, 12345, 678, 97)
		b := genSeq(scheme, 12345, 678, 97)
		require.Equal(t, a, b)
	}
}

func TestLaneGroupBallot(t *testing.T) {
	words := []uint64{10, 20, 10, 30}
	for _, width := range []uint32{1, 2} {
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			g := laneGroup{width: width}

			match := g.ballot(uint32(len(words)), func(s uint32) bool {
				return words[s] == 10
			})
			require.Equal(t, bitset(0b0101), match)
			require.EqualValues(t, 0, match.first())
			require.Equal(t, 2, match.count())
			require.Equal(t, bitset(0b0100), match.remove(0))

			var visited []uint32
			g.each(uint32(len(words)), func(s uint32) {
				visited = append(visited, s)
			})
			require.ElementsMatch(t, []uint32{0, 1, 2, 3}, visited)
		})
	}
}

func TestPackKeyRoundTrip(t *testing.T) {
	t.Run("int64", func(t *testing.T) {
		for _, k := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
			require.Equal(t, k, unpackKey[int64](packKey(k)))
		}
	})
	t.Run("uint8", func(t *testing.T) {
		for k := 0; k < 256; k++ {
			require.Equal(t, uint8(k), unpackKey[uint8](packKey(uint8(k))))
		}
	})
	t.Run("struct", func(t *testing.T) {
		type pair struct {
			a int32
			b uint32
		}
		k := pair{a: -7, b: 9}
		require.Equal(t, k, unpackKey[pair](packKey(k)))
	})
}

func TestCheckKeyType(t *testing.T) {
	require.NotPanics(t, func() { checkKeyType[int64]() })
	require.NotPanics(t, func() { checkKeyType[uint32]() })
	require.NotPanics(t, func() { checkKeyType[float64]() })
	require.NotPanics(t, func() { checkKeyType[[2]uint32]() })

	// Strings compare by content, not stored bits.
	require.Panics(t, func() { checkKeyType[string]() })
	// Pointers are not a stable representation.
	require.Panics(t, func() { checkKeyType[*int]() })
	// Too wide for a slot word.
	require.Panics(t, func() { checkKeyType[[3]uint64]() })
	// Padding holes make the bit pattern unstable.
	type padded struct {
		a uint8
		b uint32
	}
	require.Panics(t, func() { checkKeyType[padded]() })
}

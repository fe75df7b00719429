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

func TestResolveExtentDoubleHashing(t *testing.T) {
	testCases := []struct {
		requested  int
		loadFactor float64
		expected   uint64
	}{
		{400, 0, 422},
		{-10, 0, 4},
		{0, 0, 4},
		{400, 0.8, 502},
		{1, 0, 4},
		{4, 0, 4},
		{5, 0, 6},
		{1000, 0.5, 2018},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprintf("requested=%d,lf=%v", c.requested, c.loadFactor), func(t *testing.T) {
			got := resolveExtent(c.requested, c.loadFactor, DoubleHashing{}, windowSize, 1)
			require.Equal(t, c.expected, got)
		})
	}
}

func TestResolveExtentLinearProbing(t *testing.T) {
	testCases := []struct {
		requested  int
		groupWidth uint32
		expected   uint64
	}{
		{0, 1, 2},
		{-3, 1, 2},
		{1, 1, 2},
		{3, 1, 4},
		{0, 2, 4},
		{7, 2, 8},
		{400, 1, 400},
		{401, 1, 402},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprintf("requested=%d,gw=%d", c.requested, c.groupWidth), func(t *testing.T) {
			got := resolveExtent(c.requested, 0, LinearProbing{}, windowSize, c.groupWidth)
			require.Equal(t, c.expected, got)
		})
	}
}

func TestResolveExtentProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		requested := rng.Intn(1 << 16)
		var lf float64
		if rng.Intn(2) == 0 {
			lf = 0.1 + 0.9*rng.Float64()
		}

		double := resolveExtent(requested, lf, DoubleHashing{}, windowSize, 1)
		require.GreaterOrEqual(t, double, uint64(requested))
		require.Zero(t, double%windowSize)
		require.True(t, isPrime(double/windowSize),
			"extent %d does not hold a prime number of windows", double)

		linear := resolveExtent(requested, lf, LinearProbing{}, windowSize, 1)
		require.GreaterOrEqual(t, linear, uint64(requested))
		require.Zero(t, linear%windowSize)
		require.NotZero(t, linear)
	}
}

func TestNextPrime(t *testing.T) {
	testCases := []struct {
		n, expected uint64
	}{
		{0, 2}, {1, 2}, {2, 2}, {3, 3}, {4, 5}, {8, 11},
		{200, 211}, {250, 251}, {251, 251}, {7918, 7919},
	}
	for _, c := range testCases {
		require.Equal(t, c.expected, nextPrime(c.n), "nextPrime(%d)", c.n)
	}
}

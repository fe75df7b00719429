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

import "math"

// resolveExtent turns a requested capacity into the actual slot count of a
// table. The result is always at least the requested capacity and always
// satisfies the probing scheme's coverage rule, so that a probe sequence
// visits every window before it repeats.
//
// A target load factor, when non-zero, inflates the request to
// ceil(requested/loadFactor) before rounding. A zero or negative request is
// not an error: it resolves to the scheme's minimum valid extent. Tables
// cannot grow, so callers pick the capacity here or not at all.
func resolveExtent(requested int, loadFactor float64, scheme ProbingScheme, ws, gw uint32) uint64 {
	var target uint64
	if requested > 0 {
		target = uint64(requested)
		if loadFactor > 0 {
			target = uint64(math.Ceil(float64(requested) / loadFactor))
		}
	}
	return scheme.extentFor(target, ws, gw)
}

// nextPrime returns the smallest prime >= n, treating n < 2 as 2. Extents
// are resolved once at construction, so trial division is plenty.
func nextPrime(n uint64) uint64 {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for ; !isPrime(n); n += 2 {
	}
	return n
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// roundUpMultiple returns the smallest multiple of m >= n, and m itself for
// n == 0.
func roundUpMultiple(n, m uint64) uint64 {
	if n == 0 {
		return m
	}
	return (n + m - 1) / m * m
}

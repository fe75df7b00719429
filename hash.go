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

import "github.com/zeebo/xxh3"

// Hasher computes a 64-bit hash of a key. A Hasher must be deterministic for
// a given (key, seed) pair: probe sequences are re-derived from scratch on
// every operation and any instability would break lookups.
type Hasher[K any] func(key K, seed uint64) uint64

// stepSeed perturbs the table seed to derive the second, independent hash
// used by double hashing. The constant is the 64-bit golden ratio, the usual
// choice for decorrelating two streams from one seed.
const stepSeed = 0x9e3779b97f4a7c15

// defaultHasher hashes the key's raw bytes with xxh3. Since admitted key
// types compare by bit pattern, hashing the bit pattern is consistent with
// key equality.
func defaultHasher[K comparable]() Hasher[K] {
	return func(key K, seed uint64) uint64 {
		return xxh3.HashSeed(keyBytes(&key), seed)
	}
}

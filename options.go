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

// Option configures a Set or Multiset while it is being created.
type Option[K comparable] interface {
	apply(c *config[K])
}

// config collects construction parameters before any allocation happens.
type config[K comparable] struct {
	loadFactor  float64
	erasedKey   K
	hasErased   bool
	keyEq       func(a, b K) bool
	hash        Hasher[K]
	scheme      ProbingScheme
	allocator   Allocator
	stream      *Stream
	seed        uint64
	hasSeed     bool
	groupWidth  uint32
	parallelism int
}

type loadFactorOption[K comparable] struct {
	loadFactor float64
}

func (op loadFactorOption[K]) apply(c *config[K]) {
	c.loadFactor = op.loadFactor
}

// WithLoadFactor sizes the table as ceil(capacity/loadFactor) slots before
// extent resolution, so that the requested number of keys occupies at most
// the given fraction of the table. Values outside (0, 1] are ignored.
func WithLoadFactor[K comparable](loadFactor float64) Option[K] {
	if loadFactor <= 0 || loadFactor > 1 {
		loadFactor = 0
	}
	return loadFactorOption[K]{loadFactor}
}

type erasedKeyOption[K comparable] struct {
	erasedKey K
}

func (op erasedKeyOption[K]) apply(c *config[K]) {
	c.erasedKey = op.erasedKey
	c.hasErased = true
}

// WithErasedKey reserves a second sentinel bit pattern marking erased slots
// and enables the Erase operations. The erased key must be bitwise distinct
// from the empty key and, like it, must never be inserted.
func WithErasedKey[K comparable](erasedKey K) Option[K] {
	return erasedKeyOption[K]{erasedKey}
}

type keyEqOption[K comparable] struct {
	eq func(a, b K) bool
}

func (op keyEqOption[K]) apply(c *config[K]) {
	c.keyEq = op.eq
}

// WithKeyEq replaces the key equality predicate used to compare stored keys
// against probe keys. Sentinel detection always compares raw bit patterns
// and is unaffected.
func WithKeyEq[K comparable](eq func(a, b K) bool) Option[K] {
	return keyEqOption[K]{eq}
}

type hasherOption[K comparable] struct {
	hash Hasher[K]
}

func (op hasherOption[K]) apply(c *config[K]) {
	c.hash = op.hash
}

// WithHasher replaces the default xxh3 hasher.
func WithHasher[K comparable](hash Hasher[K]) Option[K] {
	return hasherOption[K]{hash}
}

type probingOption[K comparable] struct {
	scheme ProbingScheme
}

func (op probingOption[K]) apply(c *config[K]) {
	c.scheme = op.scheme
}

// WithProbing selects the probing scheme. The default is DoubleHashing.
func WithProbing[K comparable](scheme ProbingScheme) Option[K] {
	return probingOption[K]{scheme}
}

type streamOption[K comparable] struct {
	stream *Stream
}

func (op streamOption[K]) apply(c *config[K]) {
	c.stream = op.stream
}

// WithStream submits the container's bulk operations to the given stream
// instead of a private one. The caller keeps ownership of the stream.
func WithStream[K comparable](stream *Stream) Option[K] {
	return streamOption[K]{stream}
}

type seedOption[K comparable] struct {
	seed uint64
}

func (op seedOption[K]) apply(c *config[K]) {
	c.seed = op.seed
	c.hasSeed = true
}

// WithSeed fixes the hash seed, making probe sequences reproducible across
// runs. Without it every container draws a random seed.
func WithSeed[K comparable](seed uint64) Option[K] {
	return seedOption[K]{seed}
}

type groupWidthOption[K comparable] struct {
	width uint32
}

func (op groupWidthOption[K]) apply(c *config[K]) {
	c.groupWidth = op.width
}

// WithGroupWidth sets the number of cooperating lanes that jointly inspect
// one window. Width 1 (the default) is the plain sequential path; widths up
// to the window size divide the window's slots among lanes.
func WithGroupWidth[K comparable](width uint32) Option[K] {
	return groupWidthOption[K]{width}
}

type parallelismOption[K comparable] struct {
	parallelism int
}

func (op parallelismOption[K]) apply(c *config[K]) {
	c.parallelism = op.parallelism
}

// WithParallelism bounds the number of goroutines a bulk operation fans out
// to. The default is GOMAXPROCS.
func WithParallelism[K comparable](parallelism int) Option[K] {
	return parallelismOption[K]{parallelism}
}

// Allocator specifies an interface for allocating and releasing the slot
// memory of a table. The default allocator utilizes Go's builtin make() and
// allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Close must be called in order to ensure FreeSlots is called.
// Returned memory must be safe for concurrent atomic access.
type Allocator interface {
	// AllocSlots should return a slice equivalent to make([]uint64, n).
	AllocSlots(n int) []uint64

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []uint64)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocSlots(n int) []uint64 {
	return make([]uint64, n)
}

func (defaultAllocator) FreeSlots(v []uint64) {
}

type allocatorOption[K comparable] struct {
	allocator Allocator
}

func (op allocatorOption[K]) apply(c *config[K]) {
	c.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator for the slot storage.
func WithAllocator[K comparable](allocator Allocator) Option[K] {
	return allocatorOption[K]{allocator}
}

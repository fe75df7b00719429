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

import "sync"

// Stream is a FIFO submission queue for bulk operations. Tasks submitted to
// a stream run one at a time in submission order on a dedicated goroutine;
// each task may fan out internally, but the next task does not start until
// the previous one has fully completed. Wait blocks until everything
// submitted so far has run.
//
// Submit never blocks, which is what makes the Async forms of the bulk
// operations non-blocking: their outputs are undefined until the caller
// waits on the stream they were submitted to.
//
// Containers created without WithStream own a private stream. A shared
// stream sequences bulk operations across containers, mirroring how callers
// order work against a shared table.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	pending int // queued plus currently running tasks
	closed  bool
}

// NewStream creates a stream and starts its sequencer goroutine. Close
// releases the goroutine.
func NewStream() *Stream {
	s := &Stream{}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *Stream) run() {
	s.mu.Lock()
	for {
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.cond.Wait()
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task()

		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			s.cond.Broadcast()
		}
	}
}

// Submit enqueues task behind everything previously submitted and returns
// immediately. Submitting to a closed stream panics: the stream's goroutine
// is gone and the task would never run.
func (s *Stream) Submit(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic("conset: submit on closed Stream")
	}
	s.queue = append(s.queue, task)
	s.pending++
	s.cond.Broadcast()
}

// Wait blocks until all tasks submitted before the call have completed.
func (s *Stream) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.cond.Wait()
	}
}

// Close drains the stream and stops its goroutine. Close is idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	for s.pending > 0 {
		s.cond.Wait()
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

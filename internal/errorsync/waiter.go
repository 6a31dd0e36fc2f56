// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package errorsync drives the multi-threaded stressors used to validate
// the symbol table and both StatDataAllocator variants under concurrent
// mutation: a fleet of numbered workers hammering encode/free or alloc/free
// at once, with every failure collected instead of the first one aborting
// the run.
package errorsync

import "sync"

// Stressor runs fleets of numbered worker goroutines and collects whichever
// of them return a non-nil error. The zero value is ready to use.
type Stressor struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errors []error
}

// Spawn starts workers goroutines, each running f with its own worker
// index. Workers typically derive distinct stat names from the index so the
// run exercises both contended and uncontended paths. Spawn returns
// immediately; call Wait to block until the fleet drains. Spawn may be
// called more than once to layer differently-shaped workloads onto one
// Stressor.
func (s *Stressor) Spawn(workers int, f func(worker int) error) {
	s.wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer s.wg.Done()
			if err := f(w); err != nil {
				s.mu.Lock()
				s.errors = append(s.errors, err)
				s.mu.Unlock()
			}
		}()
	}
}

// Wait blocks until every spawned worker has returned, then reports all
// errors collected along the way, in no particular order.
func (s *Stressor) Wait() []error {
	s.wg.Wait()
	return s.errors
}

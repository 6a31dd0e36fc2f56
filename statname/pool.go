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

package statname

import "sync"

// Pool owns many StatNameStorage instances and releases all of them at
// once, instead of requiring callers to track each one individually. It is
// useful for request- or filter-scoped metric names that all go away
// together.
type Pool struct {
	mu       sync.Mutex
	enc      Encoder
	rel      Releaser
	storages []*StatNameStorage
}

// NewPool returns an empty Pool backed by enc and rel.
func NewPool(enc Encoder, rel Releaser) *Pool {
	return &Pool{enc: enc, rel: rel}
}

// Add encodes name, remembers the resulting storage, and returns a view
// over it. The view stays valid until Clear is called.
func (p *Pool) Add(name string) (StatName, error) {
	st, err := NewStorage(name, p.enc)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.storages = append(p.storages, st)
	p.mu.Unlock()
	return st.StatName(), nil
}

// Clear releases every StatName the pool has produced and resets it to
// empty.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.storages {
		st.Release(p.rel)
	}
	p.storages = p.storages[:0]
}

// Size returns the number of StatNames currently held by the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.storages)
}

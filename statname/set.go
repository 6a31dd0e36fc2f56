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

// Set de-duplicates StatNames built from dynamic strings within one scope
// (for example, HTTP response codes or gRPC status codes a filter turns
// into metric name suffixes), so the same string is never re-encoded twice.
// It is backed by a Pool and releases everything it produced when Clear is
// called.
type Set struct {
	mu    sync.Mutex
	pool  *Pool
	names map[string]StatName
}

// NewSet returns an empty Set backed by enc and rel.
func NewSet(enc Encoder, rel Releaser) *Set {
	return &Set{
		pool:  NewPool(enc, rel),
		names: make(map[string]StatName),
	}
}

// Rememberable returns the StatName for name, encoding and caching it on
// first use and returning the cached view on every later call.
func (s *Set) Rememberable(name string) (StatName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sn, ok := s.names[name]; ok {
		return sn, nil
	}
	sn, err := s.pool.Add(name)
	if err != nil {
		return nil, err
	}
	s.names[name] = sn
	return sn, nil
}

// Clear releases every StatName the set has produced.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.Clear()
	s.names = make(map[string]StatName)
}

// StorageSet is a Set whose owner explicitly controls its lifetime via
// Release instead of an implicit scope. It behaves identically otherwise;
// the separate name mirrors the distinction between a scope-lifetime set
// and one an owner releases explicitly.
type StorageSet struct {
	*Set
}

// NewStorageSet returns an empty StorageSet backed by enc and rel.
func NewStorageSet(enc Encoder, rel Releaser) *StorageSet {
	return &StorageSet{Set: NewSet(enc, rel)}
}

// Release releases every StatName the set has produced.
func (s *StorageSet) Release() {
	s.Clear()
}

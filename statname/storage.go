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

import "runtime"

// Encoder is the subset of a symbol table that StatNameStorage needs to
// turn a string into bytes. symboltable.Table satisfies this.
type Encoder interface {
	Encode(name string) *SymbolEncoding
	IncRefCount(sn StatName)
}

// Releaser is the subset of a symbol table that StatNameStorage needs to
// give its ref counts back. symboltable.Table satisfies this.
type Releaser interface {
	Free(sn StatName)
}

// DebugAssertions controls what happens when a StatNameStorage is garbage
// collected without Release ever being called. Left false (the default),
// the finalizer silently leaks the storage's symbol ref counts, matching
// release-build behavior. Tests that want to catch the bug set this true.
var DebugAssertions = false

// StatNameStorage owns a byte array holding exactly one encoded StatName.
// Constructing one bumps ref counts in the symbol table it was built from;
// Release gives them back. A StatNameStorage must be released before it is
// discarded.
type StatNameStorage struct {
	bytes    []byte
	released bool
}

// NewStorage encodes name through enc and copies the result into a freshly
// allocated buffer.
func NewStorage(name string, enc Encoder) (*StatNameStorage, error) {
	se := enc.Encode(name)
	buf := make([]byte, se.BytesRequired())
	if err := se.MoveToStorage(buf); err != nil {
		return nil, err
	}
	return newStorage(buf), nil
}

// NewStorageFromStatName copies an existing StatName's bytes verbatim and
// bumps ref counts for the copy through enc.
func NewStorageFromStatName(sn StatName, enc Encoder) *StatNameStorage {
	buf := make([]byte, len(sn))
	copy(buf, sn)
	cp := StatName(buf)
	enc.IncRefCount(cp)
	return newStorage(buf)
}

func newStorage(buf []byte) *StatNameStorage {
	s := &StatNameStorage{bytes: buf}
	runtime.SetFinalizer(s, finalizeStorage)
	return s
}

func finalizeStorage(s *StatNameStorage) {
	if !s.released && DebugAssertions {
		panic("statname: StatNameStorage garbage collected without Release")
	}
}

// StatName returns a view over the owned bytes. The view is valid only
// while this StatNameStorage is alive and unreleased.
func (s *StatNameStorage) StatName() StatName {
	return StatName(s.bytes)
}

// Release decrements the ref counts this storage is holding. It must be
// called exactly once, before the storage is discarded.
func (s *StatNameStorage) Release(r Releaser) {
	if s.released {
		panic("statname: StatNameStorage released twice")
	}
	r.Free(s.StatName())
	s.released = true
	runtime.SetFinalizer(s, nil)
}

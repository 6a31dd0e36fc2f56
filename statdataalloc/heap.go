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

// Package statdataalloc provides the heap-backed StatDataAllocator: a plain
// Go map keyed by name, one *rawstatdata.RawStatData per key, guarded by a
// mutex. It never truncates an oversized name and never shares memory with
// another process; the block allocator (see the blockstats package) trades
// those properties for a fixed, mmap-able footprint.
package statdataalloc

import (
	"fmt"
	"sync"

	"go.uber.org/proxystats/rawstatdata"
	"go.uber.org/zap"
)

// HeapAllocator hands out one *rawstatdata.RawStatData per distinct name,
// recycling the record when its ref count returns to zero via Free.
type HeapAllocator struct {
	mu      sync.Mutex
	opts    rawstatdata.StatsOptions
	records map[string]*rawstatdata.RawStatData
	logger  *zap.Logger
}

// HeapOption configures a HeapAllocator.
type HeapOption func(*HeapAllocator)

// WithLogger overrides the allocator's logger, used only to report fatal
// invariant violations (freeing an unknown record).
func WithLogger(logger *zap.Logger) HeapOption {
	return func(h *HeapAllocator) { h.logger = logger }
}

// WithStatsOptions overrides the default name-length limits.
func WithStatsOptions(opts rawstatdata.StatsOptions) HeapOption {
	return func(h *HeapAllocator) { h.opts = opts }
}

// NewHeapAllocator returns a HeapAllocator with MaxNameLength=127 unless
// overridden by WithStatsOptions.
func NewHeapAllocator(opts ...HeapOption) *HeapAllocator {
	h := &HeapAllocator{
		opts:    rawstatdata.DefaultStatsOptions(),
		records: make(map[string]*rawstatdata.RawStatData),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Alloc returns the record for name, creating and initializing a new one
// with ref count 1 if this is the first request for name, or incrementing
// the existing record's ref count otherwise. An oversized name is an error,
// never truncated, unlike the block allocator.
func (h *HeapAllocator) Alloc(name string) (*rawstatdata.RawStatData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.records[name]; ok {
		rec.RefCount().Inc()
		return rec, nil
	}

	rec := rawstatdata.NewRecord(h.opts)
	if err := rawstatdata.Initialize(rec, name, h.opts, false); err != nil {
		return nil, fmt.Errorf("statdataalloc: %w", err)
	}
	h.records[name] = rec
	return rec, nil
}

// Free decrements rec's ref count, deleting it from the table once it
// reaches zero. Freeing a record this allocator never handed out is a fatal
// invariant violation.
func (h *HeapAllocator) Free(rec *rawstatdata.RawStatData) {
	name := rec.NameString()

	h.mu.Lock()
	defer h.mu.Unlock()

	stored, ok := h.records[name]
	if !ok || stored != rec {
		h.logger.Fatal("statdataalloc: free of unknown record", zap.String("name", name))
		return
	}
	if rec.RefCount().Dec() == 0 {
		delete(h.records, name)
	}
}

// Len reports the number of distinct names currently allocated.
func (h *HeapAllocator) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Lookup returns the record for name without affecting its ref count, for
// callers that already hold a reference and just need to peek.
func (h *HeapAllocator) Lookup(name string) (*rawstatdata.RawStatData, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[name]
	return rec, ok
}

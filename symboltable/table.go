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

// Package symboltable interns the dot-separated tokens of metric names into
// small integer symbols, so that the millions of names a proxy accumulates
// (cluster.outbound|443||svc.default.upstream_rq_2xx and friends) collapse
// down to a handful of shared strings plus a few bytes of symbol ids per
// name.
//
// A Table keeps two maps under one mutex: token string to SharedSymbol, and
// symbol back to its owned string. Freed symbols are recycled from a LIFO
// pool rather than the monotonic counter, so the same string re-interned
// later may or may not get its old id back.
//
// Table decodes a statname.StatName's symbols before taking its lock
// wherever the caller only needs the result, not the map mutation, inside
// the critical section: Free, IncRefCount, and LessThan all do the
// (unbounded, name-length-proportional) byte walk first and hold the lock
// only for the map bookkeeping, which is this design's primary
// contention-reduction technique.
package symboltable

import (
	"math"
	"strings"
	"sync"

	"go.uber.org/proxystats/statname"
	"go.uber.org/zap"
)

// Symbol identifies one interned token. It is an alias for statname.Symbol
// so that StatNames built from this package's encodings decode with the
// same type callers already hold.
type Symbol = statname.Symbol

// sharedSymbol is the table's internal record for one token.
type sharedSymbol struct {
	id       Symbol
	refCount uint32
}

// Table is a concurrency-safe symbol interner. The zero value is not usable;
// construct one with NewTable.
type Table struct {
	mu sync.Mutex

	encodeMap map[string]*sharedSymbol
	decodeMap map[Symbol]string
	pool      []Symbol

	monotonicCounter Symbol
	nextSymbol       Symbol

	logger *zap.Logger
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithLogger sets the logger a Table uses to report fatal invariant
// violations (symbol counter overflow, decode-map corruption). The default
// is a no-op logger, but Fatal still terminates the process either way.
func WithLogger(logger *zap.Logger) TableOption {
	return func(t *Table) { t.logger = logger }
}

// NewTable constructs an empty Table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		encodeMap: make(map[string]*sharedSymbol),
		decodeMap: make(map[Symbol]string),
		// Symbol 0 is reserved for "unassigned"; the first symbol ever
		// handed out is 1.
		monotonicCounter: 1,
		nextSymbol:       1,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Encode splits name on '.' and returns a SymbolEncoding for its tokens,
// left to right. An empty name produces an empty encoding.
func (t *Table) Encode(name string) *statname.SymbolEncoding {
	se := statname.NewSymbolEncoding()
	if name == "" {
		return se
	}
	tokens := strings.Split(name, ".")
	symbols := make([]Symbol, len(tokens))

	t.mu.Lock()
	for i, tok := range tokens {
		symbols[i] = t.internLocked(tok)
	}
	t.mu.Unlock()

	for _, s := range symbols {
		se.Add(s)
	}
	return se
}

func (t *Table) internLocked(token string) Symbol {
	if ss, ok := t.encodeMap[token]; ok {
		ss.refCount++
		return ss.id
	}
	id := t.newSymbolLocked()
	t.encodeMap[token] = &sharedSymbol{id: id, refCount: 1}
	t.decodeMap[id] = token
	return id
}

// newSymbolLocked assigns nextSymbol to the caller, then computes the next
// nextSymbol: pop the pool if it has anything, else pre-increment the
// monotonic counter. Must be called with mu held.
func (t *Table) newSymbolLocked() Symbol {
	id := t.nextSymbol
	if n := len(t.pool); n > 0 {
		t.nextSymbol = t.pool[n-1]
		t.pool = t.pool[:n-1]
		return id
	}
	if t.monotonicCounter == math.MaxUint32 {
		t.logger.Fatal("symboltable: monotonic symbol counter overflowed")
	}
	t.monotonicCounter++
	t.nextSymbol = t.monotonicCounter
	return id
}

// Decode turns a StatName's symbols back into the dotted string they
// encode.
func (t *Table) Decode(sn statname.StatName) string {
	symbols := sn.Symbols()
	if len(symbols) == 0 {
		return ""
	}
	tokens := make([]string, len(symbols))

	t.mu.Lock()
	for i, s := range symbols {
		tok, ok := t.decodeMap[s]
		if !ok {
			t.logger.Fatal("symboltable: decode inconsistency, symbol missing from decode map",
				zap.Uint32("symbol", uint32(s)))
		}
		// A NUL inside an owned token means the table's string storage
		// has been corrupted; records store names NUL-terminated.
		if strings.IndexByte(tok, 0) != -1 {
			t.logger.Fatal("symboltable: decode inconsistency, token contains NUL byte",
				zap.Uint32("symbol", uint32(s)))
		}
		tokens[i] = tok
	}
	t.mu.Unlock()

	return strings.Join(tokens, ".")
}

// Free decrements the ref count of every symbol sn encodes; symbols that
// reach zero are erased from both maps and returned to the pool.
func (t *Table) Free(sn statname.StatName) {
	symbols := sn.Symbols()
	if len(symbols) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range symbols {
		tok, ok := t.decodeMap[s]
		if !ok {
			t.logger.Fatal("symboltable: free inconsistency, symbol missing from decode map",
				zap.Uint32("symbol", uint32(s)))
		}
		ss := t.encodeMap[tok]
		ss.refCount--
		if ss.refCount == 0 {
			delete(t.encodeMap, tok)
			delete(t.decodeMap, s)
			t.pool = append(t.pool, s)
		}
	}
}

// IncRefCount increments the ref count of every symbol sn encodes, without
// allocating any new symbols. Used when a StatName's bytes are copied
// verbatim (see statname.NewStorageFromStatName).
func (t *Table) IncRefCount(sn statname.StatName) {
	symbols := sn.Symbols()
	if len(symbols) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range symbols {
		tok, ok := t.decodeMap[s]
		if !ok {
			t.logger.Fatal("symboltable: inc-ref inconsistency, symbol missing from decode map",
				zap.Uint32("symbol", uint32(s)))
		}
		t.encodeMap[tok].refCount++
	}
}

// LessThan reports whether a sorts before b under the lexical order of
// their dotted (elaborated) form: symbols are compared pairwise by the
// strings they decode to, and the shorter of two names sharing a common
// prefix sorts first.
func (t *Table) LessThan(a, b statname.StatName) bool {
	as, bs := a.Symbols(), b.Symbols()

	t.mu.Lock()
	defer t.mu.Unlock()
	return statname.Less(as, bs, func(s Symbol) string {
		tok, ok := t.decodeMap[s]
		if !ok {
			t.logger.Fatal("symboltable: compare inconsistency, symbol missing from decode map",
				zap.Uint32("symbol", uint32(s)))
		}
		return tok
	})
}

// NumSymbols returns the number of distinct tokens currently interned.
func (t *Table) NumSymbols() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encodeMap)
}

// entryOverhead is a rough per-entry bookkeeping cost (two map buckets plus
// the sharedSymbol record) used by EstimatedBytes. It is meant to be
// proportional to actual usage for admin-endpoint reporting, not exact.
const entryOverhead = 64

// EstimatedBytes estimates the memory currently held by the table: the
// owned string bytes plus a fixed per-entry bookkeeping overhead.
func (t *Table) EstimatedBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for tok := range t.encodeMap {
		total += int64(len(tok)) + entryOverhead
	}
	return total
}

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

// Package rawstatdata defines the fixed-layout record a counter or gauge's
// value lives in: an atomic value, a pending delta for differential
// exporters, a flags word, a ref count, a reserved chain word, and an
// inline NUL-terminated name.
//
// A RawStatData is a view over a byte slice laid out exactly as the fields
// above describe, little-endian, with the atomics accessed in place. The
// bytes can come from an ordinary heap allocation (see NewRecord, used by
// the heap allocator) or from a slice into a larger contiguous block that
// may itself be memory-mapped and shared between processes (see FromBytes,
// used by the block allocator). Go has no flexible array members, so the
// inline variable-length name is simply the record's trailing bytes;
// RecordSize reports the canonical, table-wide size both StatDataAllocator
// variants use to size every record identically.
package rawstatdata

import (
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

// StatsOptions configures name handling shared by both allocator variants.
type StatsOptions struct {
	// MaxNameLength bounds the inline name field. Names longer than this
	// are rejected by the heap allocator and truncated by the block
	// allocator. Default 127.
	MaxNameLength int

	// MaxStatSuffixLength bounds the longest permissible trailing portion
	// after a scope prefix. It is enforced by callers that build scoped
	// names (see the stats package), not by RawStatData itself.
	MaxStatSuffixLength int
}

// DefaultStatsOptions returns the default MaxNameLength of 127.
func DefaultStatsOptions() StatsOptions {
	return StatsOptions{MaxNameLength: 127, MaxStatSuffixLength: 127}
}

func (o StatsOptions) validate() error {
	if o.MaxNameLength <= 0 {
		return fmt.Errorf("rawstatdata: MaxNameLength must be positive, got %d", o.MaxNameLength)
	}
	return nil
}

// alignment is the platform byte alignment every record starts on, so the
// 64-bit atomics at the front of each record are always naturally aligned.
const alignment = 8

// Byte offsets of the record's fixed fields. Value and PendingDelta are
// 64-bit atomics and sit on the record's 8-aligned base; Flags and
// RefCount are 32-bit atomics; the chain word is the reserved region the
// block allocator threads its slot-index collision chains through.
const (
	valueOffset        = 0
	pendingDeltaOffset = 8
	flagsOffset        = 16
	refCountOffset     = 20
	chainOffset        = 24
	nameOffset         = 28
)

// headerSize is the byte size of the fixed fields preceding the inline
// name.
const headerSize = nameOffset

// RecordSize returns the canonical, table-wide byte size of a RawStatData
// whose inline name field can hold up to maxNameLength bytes plus a
// terminating NUL, rounded up to the platform alignment.
func RecordSize(maxNameLength int) int {
	raw := headerSize + maxNameLength + 1 // +1 for the NUL terminator
	if rem := raw % alignment; rem != 0 {
		raw += alignment - rem
	}
	return raw
}

// RawStatData is one counter or gauge's backing record: a view over bytes
// owned by a heap allocation or by an allocator's contiguous block. The
// view itself carries no state beyond the slice; two views over the same
// bytes observe the same record.
type RawStatData struct {
	b []byte
}

// FromBytes builds a record view over b, which must hold at least the
// record's fixed header. The caller is responsible for b's 8-byte
// alignment; slices from make and slices into an mmap'd region at
// 8-aligned offsets both qualify.
func FromBytes(b []byte) *RawStatData {
	if len(b) < headerSize {
		panic(fmt.Sprintf("rawstatdata: record needs at least %d bytes, got %d", headerSize, len(b)))
	}
	return &RawStatData{b: b}
}

// NewRecord allocates a heap-backed record of the canonical size for opts.
func NewRecord(opts StatsOptions) *RawStatData {
	return FromBytes(make([]byte, RecordSize(opts.MaxNameLength)))
}

// Value is the metric's current value, updated with atomic
// read-modify-write operations outside any allocator lock.
func (r *RawStatData) Value() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&r.b[valueOffset]))
}

// PendingDelta accumulates increments not yet flushed by a differential
// exporter.
func (r *RawStatData) PendingDelta() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&r.b[pendingDeltaOffset]))
}

// Flags is the record's bitset of metric flags.
func (r *RawStatData) Flags() *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&r.b[flagsOffset]))
}

// RefCount counts the outstanding handles to this record.
func (r *RawStatData) RefCount() *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&r.b[refCountOffset]))
}

// ChainIndex reads the reserved chain word, which the block allocator uses
// to link collision chains and the free list by slot index. Not atomic;
// callers serialize access with the allocator lock.
func (r *RawStatData) ChainIndex() uint32 {
	return uint32(r.b[chainOffset]) | uint32(r.b[chainOffset+1])<<8 |
		uint32(r.b[chainOffset+2])<<16 | uint32(r.b[chainOffset+3])<<24
}

// SetChainIndex writes the reserved chain word. Not atomic; callers
// serialize access with the allocator lock.
func (r *RawStatData) SetChainIndex(v uint32) {
	r.b[chainOffset] = byte(v)
	r.b[chainOffset+1] = byte(v >> 8)
	r.b[chainOffset+2] = byte(v >> 16)
	r.b[chainOffset+3] = byte(v >> 24)
}

// Bytes returns the record's backing bytes.
func (r *RawStatData) Bytes() []byte {
	return r.b
}

// Initialized reports whether the record has ever been Initialize'd, i.e.
// whether its name's first byte is non-zero.
func Initialized(rec *RawStatData) bool {
	return len(rec.b) > nameOffset && rec.b[nameOffset] != 0
}

// Initialize sets up rec for key: ref count 1, value, pending delta, and
// flags zeroed, and up to opts.MaxNameLength bytes of key copied into the
// inline name field, NUL-terminated. The chain word is left alone; it
// belongs to the allocator. truncate controls what happens to names longer
// than opts.MaxNameLength: the heap allocator rejects them
// (truncate=false), the block allocator truncates them (truncate=true).
func Initialize(rec *RawStatData, key string, opts StatsOptions, truncate bool) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if len(key) > opts.MaxNameLength {
		if !truncate {
			return fmt.Errorf("rawstatdata: name %q exceeds MaxNameLength=%d", key, opts.MaxNameLength)
		}
		key = key[:opts.MaxNameLength]
	}
	if room := len(rec.b) - nameOffset - 1; len(key) > room {
		return fmt.Errorf("rawstatdata: record has %d name bytes, need %d", room, len(key))
	}

	rec.Value().Store(0)
	rec.PendingDelta().Store(0)
	rec.Flags().Store(0)
	rec.RefCount().Store(1)

	copy(rec.b[nameOffset:], key)
	rec.b[nameOffset+len(key)] = 0
	return nil
}

// Clear marks the record uninitialized by zeroing its name's first byte,
// returning its slot to the EMPTY state. The value fields and chain word
// are left for the allocator to recycle.
func (r *RawStatData) Clear() {
	r.b[nameOffset] = 0
}

// NameString returns the dotted name a record was initialized with, up to
// its NUL terminator.
func (r *RawStatData) NameString() string {
	name := r.b[nameOffset:]
	for i, c := range name {
		if c == 0 {
			return string(name[:i])
		}
	}
	return string(name)
}

// HashName computes the hash a StatDataAllocator uses to find a record by
// name. It hashes the raw dotted name, not the symbol encoding, so the same
// name always maps to the same slot regardless of symbol table churn.
func HashName(key string) uint64 {
	return xxhash.Sum64String(key)
}

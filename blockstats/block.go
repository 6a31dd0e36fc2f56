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

// Package blockstats provides the block StatDataAllocator: every record
// lives inside one contiguous byte region sized at open time, addressed by
// slot index rather than pointer, so the whole allocator can be placed in a
// memory-mapped file and shared between processes.
//
// The region's layout, all integers little-endian:
//
//	header    {capacity, num_slots, size, free_head} uint32, at offset 0
//	buckets   num_slots uint32 slot indices
//	records   capacity records of rawstatdata.RecordSize bytes, 8-aligned
//
// Collisions chain through the reserved word inside each record (see
// rawstatdata.RawStatData.ChainIndex); the free list threads through the
// same word. A bucket head or chain word of 0xFFFFFFFF means "none".
//
// Unlike the heap allocator (see statdataalloc), oversized names are
// truncated rather than rejected, the accepted compromise of the
// shared-memory variant. Opening with init=false adopts an existing
// region's contents wholesale — live records, their values, and their ref
// counts all survive a restart.
package blockstats

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/proxystats/rawstatdata"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Header word byte offsets.
const (
	capacityOffset = 0
	numSlotsOffset = 4
	sizeOffset     = 8
	freeHeadOffset = 12
)

// headerBytes is the size of the control header at the start of the block.
const headerBytes = 16

// noIndex marks an empty bucket, the end of a collision chain, and the end
// of the free list.
const noIndex = 0xFFFFFFFF

// BlockOptions configures a Block's fixed layout.
type BlockOptions struct {
	// Capacity is the maximum number of live records the block can hold
	// at once.
	Capacity int

	// NumSlots is the hash bucket count. It should be a prime somewhat
	// larger than Capacity times the expected load factor so chains stay
	// short.
	NumSlots int

	// Path, if non-empty, backs the entire block with a memory-mapped
	// file so a second process opening the same path shares the records
	// in place. Empty means an in-process-only block.
	Path string
}

func (o BlockOptions) validate() error {
	if o.Capacity <= 0 {
		return fmt.Errorf("blockstats: Capacity must be positive, got %d", o.Capacity)
	}
	if o.NumSlots <= 0 {
		return fmt.Errorf("blockstats: NumSlots must be positive, got %d", o.NumSlots)
	}
	return nil
}

// recordBase returns the byte offset of the record array: the header and
// bucket array, rounded up so every record starts 8-aligned.
func recordBase(numSlots int) int {
	raw := headerBytes + numSlots*4
	if rem := raw % 8; rem != 0 {
		raw += 8 - rem
	}
	return raw
}

// NumBytes returns the exact byte size of the region a block built from
// opts and statsOpts occupies: header, bucket array, and Capacity records
// of rawstatdata.RecordSize(statsOpts.MaxNameLength) bytes each. It is the
// sole sizing primitive; callers that pre-allocate a shared segment reserve
// exactly this much.
func NumBytes(opts BlockOptions, statsOpts rawstatdata.StatsOptions) int {
	return recordBase(opts.NumSlots) + opts.Capacity*rawstatdata.RecordSize(statsOpts.MaxNameLength)
}

// Block is a fixed-capacity pool of RawStatData records living inside one
// contiguous byte region.
type Block struct {
	mu     sync.Mutex
	opts   rawstatdata.StatsOptions
	block  []byte
	recs   []*rawstatdata.RawStatData // one stable view per slot index
	logger *zap.Logger

	file *os.File // nil unless the block is file-backed
}

// BlockOption configures a Block beyond BlockOptions.
type BlockOption func(*Block)

// WithLogger overrides the block's logger, used to report fatal invariant
// violations (freeing a record the block never handed out).
func WithLogger(logger *zap.Logger) BlockOption {
	return func(b *Block) { b.logger = logger }
}

// OpenBlock builds a Block for opts, with statsOpts governing record sizing
// and name truncation. When opts.Path is empty the block lives in process
// memory; otherwise the whole region is backed by an mmap'd file at Path.
//
// init=true zero-initializes the region's metadata for a fresh boot.
// init=false re-opens an existing file after a restart and adopts its
// contents — the file must already exist, be exactly NumBytes long, and
// carry a header matching opts.
func OpenBlock(opts BlockOptions, statsOpts rawstatdata.StatsOptions, init bool, blockOpts ...BlockOption) (*Block, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if statsOpts.MaxNameLength <= 0 {
		return nil, fmt.Errorf("blockstats: MaxNameLength must be positive, got %d", statsOpts.MaxNameLength)
	}

	b := &Block{
		opts:   statsOpts,
		logger: zap.NewNop(),
	}
	for _, o := range blockOpts {
		o(b)
	}

	total := NumBytes(opts, statsOpts)
	if opts.Path == "" {
		b.block = make([]byte, total)
		init = true
	} else if err := b.mapFile(opts.Path, total, init); err != nil {
		return nil, err
	}

	recSize := rawstatdata.RecordSize(statsOpts.MaxNameLength)
	base := recordBase(opts.NumSlots)
	b.recs = make([]*rawstatdata.RawStatData, opts.Capacity)
	for i := range b.recs {
		off := base + i*recSize
		b.recs[i] = rawstatdata.FromBytes(b.block[off : off+recSize])
	}

	if init {
		b.format(opts)
	} else if err := b.checkHeader(opts); err != nil {
		return nil, multierr.Append(err, b.Close())
	}

	return b, nil
}

func (b *Block) mapFile(path string, total int, init bool) error {
	if !init {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("blockstats: reopen %s: %w", path, err)
		}
		if info.Size() != int64(total) {
			return fmt.Errorf("blockstats: existing block at %s is %d bytes, want %d", path, info.Size(), total)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("blockstats: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(total)); err != nil {
		f.Close()
		return fmt.Errorf("blockstats: truncate %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("blockstats: mmap %s: %w", path, err)
	}
	b.file = f
	b.block = data
	return nil
}

func (b *Block) word(off int) uint32 {
	return uint32(b.block[off]) | uint32(b.block[off+1])<<8 |
		uint32(b.block[off+2])<<16 | uint32(b.block[off+3])<<24
}

func (b *Block) setWord(off int, v uint32) {
	b.block[off] = byte(v)
	b.block[off+1] = byte(v >> 8)
	b.block[off+2] = byte(v >> 16)
	b.block[off+3] = byte(v >> 24)
}

func bucketOffset(bucket int) int {
	return headerBytes + bucket*4
}

// format writes fresh metadata: header words, empty buckets, and a free
// list threading every record's chain word in slot order.
func (b *Block) format(opts BlockOptions) {
	for i := range b.block {
		b.block[i] = 0
	}
	b.setWord(capacityOffset, uint32(opts.Capacity))
	b.setWord(numSlotsOffset, uint32(opts.NumSlots))
	b.setWord(sizeOffset, 0)
	b.setWord(freeHeadOffset, 0)
	for i := 0; i < opts.NumSlots; i++ {
		b.setWord(bucketOffset(i), noIndex)
	}
	for i, rec := range b.recs {
		if i == len(b.recs)-1 {
			rec.SetChainIndex(noIndex)
		} else {
			rec.SetChainIndex(uint32(i + 1))
		}
	}
}

// checkHeader validates that an existing region's header describes the same
// layout this process was configured with; all other state (buckets,
// chains, records) is adopted as-is.
func (b *Block) checkHeader(opts BlockOptions) error {
	if got := b.word(capacityOffset); got != uint32(opts.Capacity) {
		return fmt.Errorf("blockstats: existing block at %s has capacity %d, want %d", opts.Path, got, opts.Capacity)
	}
	if got := b.word(numSlotsOffset); got != uint32(opts.NumSlots) {
		return fmt.Errorf("blockstats: existing block at %s has %d slots, want %d", opts.Path, got, opts.NumSlots)
	}
	return nil
}

// Alloc returns the record for name, creating it in the next free slot on
// first use, or incrementing the existing record's ref count on repeat use.
// Names longer than the block's MaxNameLength are silently truncated first,
// so two long names sharing a truncated prefix alias the same record. Alloc
// returns an error once every slot is occupied; the caller decides whether
// to drop the stat or abort.
func (b *Block) Alloc(name string) (*rawstatdata.RawStatData, error) {
	// All hashing and chain comparison happens on the truncated key so
	// that Alloc and Free agree on the bucket no matter how long the
	// caller's name was.
	key := truncated(name, b.opts.MaxNameLength)

	b.mu.Lock()
	defer b.mu.Unlock()

	bucket := int(rawstatdata.HashName(key) % uint64(b.numSlots()))
	for idx := b.word(bucketOffset(bucket)); idx != noIndex; idx = b.recs[idx].ChainIndex() {
		rec := b.recs[idx]
		if rec.NameString() == key {
			rec.RefCount().Inc()
			return rec, nil
		}
	}

	free := b.word(freeHeadOffset)
	if free == noIndex {
		return nil, fmt.Errorf("blockstats: block full (%d records)", len(b.recs))
	}

	rec := b.recs[free]
	next := rec.ChainIndex()

	if err := rawstatdata.Initialize(rec, key, b.opts, true); err != nil {
		// Initialize only fails on malformed StatsOptions, never on a
		// bad name, since truncate=true here; the free list is intact.
		return nil, fmt.Errorf("blockstats: %w", err)
	}

	b.setWord(freeHeadOffset, next)
	rec.SetChainIndex(b.word(bucketOffset(bucket)))
	b.setWord(bucketOffset(bucket), free)
	b.setWord(sizeOffset, b.word(sizeOffset)+1)
	return rec, nil
}

func (b *Block) numSlots() int {
	return int(b.word(numSlotsOffset))
}

func truncated(name string, max int) string {
	if len(name) > max {
		return name[:max]
	}
	return name
}

// Free decrements rec's ref count, returning its slot to the free list once
// it reaches zero. Freeing a record this block never handed out is a fatal
// invariant violation.
func (b *Block) Free(rec *rawstatdata.RawStatData) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The record's stored name is already truncated, so it hashes to the
	// same bucket Alloc chained it into.
	key := rec.NameString()
	bucket := int(rawstatdata.HashName(key) % uint64(b.numSlots()))

	prev := uint32(noIndex)
	for idx := b.word(bucketOffset(bucket)); idx != noIndex; idx = b.recs[idx].ChainIndex() {
		s := b.recs[idx]
		if s != rec {
			prev = idx
			continue
		}
		if rec.RefCount().Dec() != 0 {
			return
		}
		if prev == noIndex {
			b.setWord(bucketOffset(bucket), s.ChainIndex())
		} else {
			b.recs[prev].SetChainIndex(s.ChainIndex())
		}
		rec.Clear()
		rec.SetChainIndex(b.word(freeHeadOffset))
		b.setWord(freeHeadOffset, idx)
		b.setWord(sizeOffset, b.word(sizeOffset)-1)
		return
	}

	b.logger.Fatal("blockstats: free of unknown record", zap.String("name", key))
}

// Len reports the number of live records.
func (b *Block) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.word(sizeOffset))
}

// Close unmaps the region if it was file-backed. Records handed out by this
// block must not be touched afterward; their bytes are gone with the
// mapping.
func (b *Block) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file == nil {
		return nil
	}
	var errs error
	if err := unix.Munmap(b.block); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("blockstats: munmap: %w", err))
	}
	if err := b.file.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("blockstats: close: %w", err))
	}
	b.block = nil
	b.recs = nil
	b.file = nil
	return errs
}

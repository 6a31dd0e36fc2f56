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

package blockstats

import (
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/proxystats/internal/errorsync"
	"go.uber.org/proxystats/rawstatdata"
)

func openTestBlock(t *testing.T, opts BlockOptions, statsOpts rawstatdata.StatsOptions) *Block {
	t.Helper()
	b, err := OpenBlock(opts, statsOpts, true)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNumBytesAccountsForHeaderBucketsAndRecords(t *testing.T) {
	statsOpts := rawstatdata.DefaultStatsOptions()
	opts := BlockOptions{Capacity: 16, NumSlots: 23}
	want := recordBase(23) + 16*rawstatdata.RecordSize(statsOpts.MaxNameLength)
	assert.Equal(t, want, NumBytes(opts, statsOpts))
	assert.Equal(t, 0, recordBase(23)%8)
}

func TestAllocCreatesAndReusesSlot(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 8, NumSlots: 13}, rawstatdata.DefaultStatsOptions())

	a, err := b.Alloc("cluster.cx_total")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), a.RefCount().Load())

	again, err := b.Alloc("cluster.cx_total")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, uint32(2), a.RefCount().Load())
	assert.Equal(t, 1, b.Len())
}

func TestAllocTruncatesOversizedName(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 4, NumSlots: 7}, rawstatdata.StatsOptions{MaxNameLength: 4})

	rec, err := b.Alloc("way_too_long_a_name")
	require.NoError(t, err)
	assert.Equal(t, "way_", rec.NameString())
}

func TestTruncatedNamesAliasSameRecord(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 4, NumSlots: 7}, rawstatdata.StatsOptions{MaxNameLength: 8})

	a, err := b.Alloc("verylong.first")
	require.NoError(t, err)
	c, err := b.Alloc("verylong.second")
	require.NoError(t, err)

	assert.Same(t, a, c)
	assert.Equal(t, uint32(2), a.RefCount().Load())
	assert.Equal(t, 1, b.Len())

	// Freeing through the truncated record lands in the same bucket the
	// long names were chained into.
	b.Free(a)
	b.Free(c)
	assert.Equal(t, 0, b.Len())
}

func TestAllocReturnsErrorWhenBlockIsFull(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 2, NumSlots: 5}, rawstatdata.DefaultStatsOptions())

	_, err := b.Alloc("x")
	require.NoError(t, err)
	_, err = b.Alloc("y")
	require.NoError(t, err)
	_, err = b.Alloc("z")
	assert.Error(t, err)
}

func TestFreeReturnsSlotToFreeListForReuse(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 1, NumSlots: 3}, rawstatdata.DefaultStatsOptions())

	rec, err := b.Alloc("only")
	require.NoError(t, err)
	b.Free(rec)
	assert.Equal(t, 0, b.Len())
	assert.False(t, rawstatdata.Initialized(rec))

	rec2, err := b.Alloc("other")
	require.NoError(t, err)
	assert.Equal(t, "other", rec2.NameString())
}

func TestFreeDecrementsBeforeReclaiming(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 4, NumSlots: 7}, rawstatdata.DefaultStatsOptions())

	_, err := b.Alloc("dup")
	require.NoError(t, err)
	rec, err := b.Alloc("dup")
	require.NoError(t, err)

	b.Free(rec)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, uint32(1), rec.RefCount().Load())
}

func TestCollisionChainsSurviveMidChainFree(t *testing.T) {
	// One bucket forces every record onto a single chain.
	b := openTestBlock(t, BlockOptions{Capacity: 3, NumSlots: 1}, rawstatdata.DefaultStatsOptions())

	first, err := b.Alloc("chain.a")
	require.NoError(t, err)
	second, err := b.Alloc("chain.b")
	require.NoError(t, err)
	third, err := b.Alloc("chain.c")
	require.NoError(t, err)

	b.Free(second)
	assert.Equal(t, 2, b.Len())

	again, err := b.Alloc("chain.a")
	require.NoError(t, err)
	assert.Same(t, first, again)
	againC, err := b.Alloc("chain.c")
	require.NoError(t, err)
	assert.Same(t, third, againC)
}

func TestHeaderTracksOccupancy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block.bin")
	statsOpts := rawstatdata.DefaultStatsOptions()
	opts := BlockOptions{Capacity: 16, NumSlots: 23, Path: path}

	b, err := OpenBlock(opts, statsOpts, true)
	require.NoError(t, err)

	_, err = b.Alloc("mapped")
	require.NoError(t, err)
	assert.Equal(t, uint32(16), b.word(capacityOffset))
	assert.Equal(t, uint32(23), b.word(numSlotsOffset))
	assert.Equal(t, uint32(1), b.word(sizeOffset))
	require.NoError(t, b.Close())
}

func TestReopenRecoversLiveRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block.bin")
	statsOpts := rawstatdata.DefaultStatsOptions()
	opts := BlockOptions{Capacity: 8, NumSlots: 13, Path: path}

	first, err := OpenBlock(opts, statsOpts, true)
	require.NoError(t, err)
	rec, err := first.Alloc("listener.cx_active")
	require.NoError(t, err)
	rec.Value().Store(42)
	require.NoError(t, first.Close())

	second, err := OpenBlock(opts, statsOpts, false)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, 1, second.Len())
	recovered, err := second.Alloc("listener.cx_active")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), recovered.Value().Load())
	assert.Equal(t, uint32(2), recovered.RefCount().Load())
	assert.Equal(t, 1, second.Len())
}

func TestReopenValidatesExistingLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block.bin")
	statsOpts := rawstatdata.DefaultStatsOptions()
	opts := BlockOptions{Capacity: 16, NumSlots: 23, Path: path}

	first, err := OpenBlock(opts, statsOpts, true)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = OpenBlock(BlockOptions{Capacity: 8, NumSlots: 23, Path: path}, statsOpts, false)
	assert.Error(t, err)
}

func TestReopenMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.bin")
	_, err := OpenBlock(BlockOptions{Capacity: 4, NumSlots: 7, Path: path}, rawstatdata.DefaultStatsOptions(), false)
	assert.Error(t, err)
}

func TestOpenBlockRejectsBadOptions(t *testing.T) {
	statsOpts := rawstatdata.DefaultStatsOptions()
	_, err := OpenBlock(BlockOptions{Capacity: 0, NumSlots: 3}, statsOpts, true)
	assert.Error(t, err)
	_, err = OpenBlock(BlockOptions{Capacity: 3, NumSlots: 0}, statsOpts, true)
	assert.Error(t, err)
	_, err = OpenBlock(BlockOptions{Capacity: 3, NumSlots: 3}, rawstatdata.StatsOptions{}, true)
	assert.Error(t, err)
}

func TestConcurrentAllocFreeWithinCapacity(t *testing.T) {
	b := openTestBlock(t, BlockOptions{Capacity: 16, NumSlots: 23}, rawstatdata.DefaultStatsOptions())

	var st errorsync.Stressor
	st.Spawn(4, func(worker int) error {
		name := "stat." + strconv.Itoa(worker)
		for i := 0; i < 50; i++ {
			rec, err := b.Alloc(name)
			if err != nil {
				return fmt.Errorf("alloc %q: %w", name, err)
			}
			b.Free(rec)
		}
		return nil
	})

	assert.Empty(t, st.Wait())
	assert.Equal(t, 0, b.Len())
}

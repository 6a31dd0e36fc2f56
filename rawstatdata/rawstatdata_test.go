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

package rawstatdata

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSizeIsAlignedAndGrowsWithName(t *testing.T) {
	small := RecordSize(16)
	large := RecordSize(127)

	assert.Equal(t, 0, small%alignment)
	assert.Equal(t, 0, large%alignment)
	assert.Greater(t, large, small)
}

func TestInitializeSetsNameAndResetsCounters(t *testing.T) {
	opts := DefaultStatsOptions()
	rec := NewRecord(opts)
	rec.Value().Store(42)
	rec.RefCount().Store(9)

	require.NoError(t, Initialize(rec, "proxy.downstream.cx_total", opts, false))
	assert.True(t, Initialized(rec))
	assert.Equal(t, "proxy.downstream.cx_total", rec.NameString())
	assert.Equal(t, uint64(0), rec.Value().Load())
	assert.Equal(t, uint32(1), rec.RefCount().Load())
}

func TestRecordLayoutIsLittleEndianAtFixedOffsets(t *testing.T) {
	opts := StatsOptions{MaxNameLength: 11}
	buf := make([]byte, RecordSize(opts.MaxNameLength))
	rec := FromBytes(buf)

	require.NoError(t, Initialize(rec, "ab", opts, false))
	rec.Value().Store(0x0102030405060708)
	rec.PendingDelta().Store(0x1122334455667788)
	rec.Flags().Store(0x000A0B0C)
	rec.SetChainIndex(0xCAFEBABE)

	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, buf[0:8])
	assert.Equal(t, []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}, buf[8:16])
	assert.Equal(t, []byte{0x0C, 0x0B, 0x0A, 0x00}, buf[16:20])
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, buf[20:24]) // ref count 1
	assert.Equal(t, []byte{0xBE, 0xBA, 0xFE, 0xCA}, buf[24:28])
	assert.Equal(t, []byte{'a', 'b', 0x00}, buf[28:31])
	assert.Equal(t, uint32(0xCAFEBABE), rec.ChainIndex())
}

func TestTwoViewsOverSameBytesObserveSameRecord(t *testing.T) {
	opts := DefaultStatsOptions()
	buf := make([]byte, RecordSize(opts.MaxNameLength))
	a := FromBytes(buf)
	b := FromBytes(buf)

	require.NoError(t, Initialize(a, "shared.record", opts, false))
	a.Value().Store(7)
	assert.Equal(t, uint64(7), b.Value().Load())
	assert.Equal(t, "shared.record", b.NameString())
}

func TestInitializeRejectsOversizedNameWithoutTruncate(t *testing.T) {
	opts := StatsOptions{MaxNameLength: 4}
	rec := NewRecord(opts)
	err := Initialize(rec, "too_long", opts, false)
	assert.Error(t, err)
	assert.False(t, Initialized(rec))
}

func TestInitializeTruncatesWhenAllowed(t *testing.T) {
	opts := StatsOptions{MaxNameLength: 4}
	rec := NewRecord(opts)
	require.NoError(t, Initialize(rec, "too_long", opts, true))
	assert.Equal(t, "too_", rec.NameString())
}

func TestInitializeRejectsZeroMaxNameLength(t *testing.T) {
	opts := StatsOptions{MaxNameLength: 0}
	rec := NewRecord(DefaultStatsOptions())
	assert.Error(t, Initialize(rec, "x", opts, true))
}

func TestInitializedFalseForFreshRecord(t *testing.T) {
	rec := NewRecord(DefaultStatsOptions())
	assert.False(t, Initialized(rec))
}

func TestClearReturnsRecordToUninitialized(t *testing.T) {
	opts := DefaultStatsOptions()
	rec := NewRecord(opts)
	require.NoError(t, Initialize(rec, "gone.soon", opts, false))
	require.True(t, Initialized(rec))

	rec.Clear()
	assert.False(t, Initialized(rec))
}

func TestReinitializeOverwritesNameInPlace(t *testing.T) {
	opts := DefaultStatsOptions()
	rec := NewRecord(opts)
	require.NoError(t, Initialize(rec, "first.name", opts, false))
	require.NoError(t, Initialize(rec, "second", opts, false))
	assert.Equal(t, "second", rec.NameString())
}

func TestHashNameMatchesXXHash64(t *testing.T) {
	assert.Equal(t, xxhash.Sum64String("cluster.manager.cx_total"), HashName("cluster.manager.cx_total"))
}

func TestHashNameDistinguishesDifferentKeys(t *testing.T) {
	assert.NotEqual(t, HashName("a.b.c"), HashName("a.b.d"))
}

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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStatName(t *testing.T, symbols ...Symbol) StatName {
	t.Helper()
	se := NewSymbolEncoding()
	for _, s := range symbols {
		se.Add(s)
	}
	buf := make([]byte, se.BytesRequired())
	require.NoError(t, se.MoveToStorage(buf))
	return StatName(buf)
}

func TestSymbolEncodingSingleByte(t *testing.T) {
	se := NewSymbolEncoding()
	se.Add(0)
	buf := make([]byte, se.BytesRequired())
	require.NoError(t, se.MoveToStorage(buf))
	assert.Equal(t, []byte{0x01, 0x00, 0x00}, buf)
}

func TestSymbolEncodingTwoBytes(t *testing.T) {
	se := NewSymbolEncoding()
	se.Add(128) // 0b10000000: low 7 bits 0, continuation set, then 1
	buf := make([]byte, se.BytesRequired())
	require.NoError(t, se.MoveToStorage(buf))
	assert.Equal(t, []byte{0x02, 0x00, 0x80, 0x01}, buf)
}

func TestSymbolEncodingMoveEmptiesBuffer(t *testing.T) {
	se := NewSymbolEncoding()
	se.Add(7)
	buf := make([]byte, se.BytesRequired())
	require.NoError(t, se.MoveToStorage(buf))
	assert.True(t, se.Empty())
	se.Destroy() // must not panic: encoding was emptied
}

func TestSymbolEncodingDestroyNonEmptyPanics(t *testing.T) {
	se := NewSymbolEncoding()
	se.Add(1)
	assert.Panics(t, se.Destroy)
}

func TestSymbolEncodingTooLarge(t *testing.T) {
	se := NewSymbolEncoding()
	for i := 0; i < MaxSize; i++ {
		se.Add(Symbol(i%120 + 1))
	}
	buf := make([]byte, se.BytesRequired())
	err := se.MoveToStorage(buf)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeSymbolsRoundTrip(t *testing.T) {
	want := []Symbol{1, 2, 3, 128, 300, 16384}
	sn := buildStatName(t, want...)
	assert.Equal(t, want, sn.Symbols())
}

func TestStatNameSizeAndPayload(t *testing.T) {
	sn := buildStatName(t, 1, 2, 3)
	assert.Equal(t, 5, sn.Size())
	assert.Equal(t, []byte{1, 2, 3}, sn.Payload())
}

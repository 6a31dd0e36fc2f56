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

func TestJoinIsAssociativeOnPayloads(t *testing.T) {
	a := buildStatName(t, 1)
	b := buildStatName(t, 2, 3)
	c := buildStatName(t, 4, 5, 6)

	ab, err := Join(a, b)
	require.NoError(t, err)
	abc1, err := Join(ab.StatName(), c)
	require.NoError(t, err)

	bc, err := Join(b, c)
	require.NoError(t, err)
	abc2, err := Join(a, bc.StatName())
	require.NoError(t, err)

	want := append(append(append([]byte{}, a.Payload()...), b.Payload()...), c.Payload()...)
	assert.Equal(t, want, abc1.StatName().Payload())
	assert.Equal(t, want, abc2.StatName().Payload())
	assert.Equal(t, abc1.StatName().Payload(), abc2.StatName().Payload())
}

func TestJoinRejectsOversizedPayload(t *testing.T) {
	se := NewSymbolEncoding()
	for i := 0; i < MaxSize-1; i++ {
		se.Add(Symbol(i%120 + 1))
	}
	buf := make([]byte, se.BytesRequired())
	require.NoError(t, se.MoveToStorage(buf))
	big := StatName(buf)

	_, err := Join(big, big)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

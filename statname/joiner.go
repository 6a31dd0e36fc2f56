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

import "fmt"

// StatNameJoiner concatenates the payloads of two or more StatNames under a
// single fresh length prefix, without touching any symbol table's ref
// counts. Since the inputs are already interned, no table interaction is
// needed; the joined view is valid only while every input StatName remains
// valid.
type StatNameJoiner struct {
	bytes []byte
}

// Join builds a StatNameJoiner out of parts, in order.
func Join(parts ...StatName) (StatNameJoiner, error) {
	total := 0
	for _, p := range parts {
		total += p.PayloadLen()
	}
	if total >= MaxSize {
		return StatNameJoiner{}, fmt.Errorf("%w: joined payload is %d bytes", ErrPayloadTooLarge, total)
	}
	buf := make([]byte, lengthPrefixSize+total)
	buf[0] = byte(total)
	buf[1] = byte(total >> 8)
	off := lengthPrefixSize
	for _, p := range parts {
		off += copy(buf[off:], p.Payload())
	}
	return StatNameJoiner{bytes: buf}, nil
}

// StatName returns a view over the joined bytes.
func (j StatNameJoiner) StatName() StatName {
	return StatName(j.bytes)
}

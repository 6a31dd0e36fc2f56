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
	"errors"
	"fmt"
)

// Symbol identifies one interned, dot-free token. Symbol 0 is reserved for
// "unassigned" and is never produced by a symbol table.
type Symbol uint32

// MaxSize is the largest payload a StatName may encode. A payload of
// exactly MaxSize is rejected because the two-byte length prefix can only
// address lengths up to MaxSize-1.
const MaxSize = 65536

// ErrPayloadTooLarge is returned when a SymbolEncoding's accumulated payload
// would not fit in the two-byte length prefix.
var ErrPayloadTooLarge = errors.New("statname: encoded payload exceeds the two-byte length prefix")

// lengthPrefixSize is the number of bytes used to record a StatName's
// payload length.
const lengthPrefixSize = 2

// SymbolEncoding is a growable buffer used to build one StatName. Symbols
// are appended left-to-right in the order their tokens appeared in the
// source name; the buffer already holds the final variable-length encoding,
// so MoveToStorage only needs to prepend the length prefix.
type SymbolEncoding struct {
	buf []byte
}

// NewSymbolEncoding returns an empty encoding ready to accept symbols.
func NewSymbolEncoding() *SymbolEncoding {
	return &SymbolEncoding{}
}

// Add appends the variable-length encoding of sym. Symbols are written
// seven bits at a time, low-order first; each byte's high bit signals
// whether another byte follows. At least one byte is always emitted.
func (e *SymbolEncoding) Add(sym Symbol) {
	v := uint32(sym)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.buf = append(e.buf, b)
		if v == 0 {
			return
		}
	}
}

// Empty reports whether the encoding holds no symbols.
func (e *SymbolEncoding) Empty() bool {
	return len(e.buf) == 0
}

// BytesRequired returns the number of bytes MoveToStorage needs to write,
// including the length prefix.
func (e *SymbolEncoding) BytesRequired() int {
	return lengthPrefixSize + len(e.buf)
}

// MoveToStorage writes the length prefix followed by the payload into dst,
// then empties the encoding. dst must be at least BytesRequired() bytes.
//
// Calling MoveToStorage twice without an intervening Add is harmless (the
// second call writes a zero-length StatName), but destroying a
// SymbolEncoding that still holds symbols without ever moving them out is a
// programmer error: see Destroy.
func (e *SymbolEncoding) MoveToStorage(dst []byte) error {
	if len(e.buf) >= MaxSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(e.buf))
	}
	if len(dst) < e.BytesRequired() {
		return fmt.Errorf("statname: destination has %d bytes, need %d", len(dst), e.BytesRequired())
	}
	n := len(e.buf)
	dst[0] = byte(n)
	dst[1] = byte(n >> 8)
	copy(dst[lengthPrefixSize:], e.buf)
	e.buf = e.buf[:0]
	return nil
}

// Destroy asserts that the encoding has already been moved into storage.
// Destroying a non-empty encoding would silently leak the ref counts the
// symbol table accrued for it, so it is treated as a fatal programming
// error rather than returned as an error value.
func (e *SymbolEncoding) Destroy() {
	if !e.Empty() {
		panic("statname: destroying a SymbolEncoding that was never moved to storage")
	}
}

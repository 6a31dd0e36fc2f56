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

// StatName is a view over an immutable byte array of the form
// [len_lo][len_hi][payload...]. It does not own its bytes and carries no
// reference count; callers must not let a StatName outlive whatever owns
// the underlying array.
type StatName []byte

// PayloadLen returns the declared payload length from the two-byte,
// little-endian length prefix.
func (sn StatName) PayloadLen() int {
	return int(sn[0]) | int(sn[1])<<8
}

// Payload returns the symbol-encoded bytes following the length prefix.
func (sn StatName) Payload() []byte {
	return sn[lengthPrefixSize : lengthPrefixSize+sn.PayloadLen()]
}

// Size returns the total encoded size, header included.
func (sn StatName) Size() int {
	return lengthPrefixSize + sn.PayloadLen()
}

// Empty reports whether sn encodes zero symbols.
func (sn StatName) Empty() bool {
	return len(sn) == 0 || sn.PayloadLen() == 0
}

// Symbols decodes the payload into its constituent Symbol sequence,
// preserving left-to-right order.
func (sn StatName) Symbols() []Symbol {
	if len(sn) == 0 {
		return nil
	}
	return DecodeSymbols(sn.Payload())
}

// DecodeSymbols decodes a raw payload (without the length prefix) into its
// Symbol sequence. Bytes are consumed seven bits at a time, low-order
// first, accumulating into a symbol with increasing shift; a byte whose
// high bit is clear ends the current symbol.
func DecodeSymbols(payload []byte) []Symbol {
	if len(payload) == 0 {
		return nil
	}
	out := make([]Symbol, 0, len(payload))
	var cur uint32
	var shift uint
	for _, b := range payload {
		cur |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			out = append(out, Symbol(cur))
			cur = 0
			shift = 0
			continue
		}
		shift += 7
	}
	return out
}

// Less reports whether aSymbols precedes bSymbols under the lexical order
// of the token strings they stand for: at the first differing index the two
// symbols' strings decide, and when all shared-prefix symbols agree the
// shorter sequence sorts first. resolve turns a symbol back into its owned
// string; the caller (normally a symboltable.Table, which alone can do
// that) supplies it, keeping StatName itself free of any table dependency.
func Less(aSymbols, bSymbols []Symbol, resolve func(Symbol) string) bool {
	n := len(aSymbols)
	if len(bSymbols) < n {
		n = len(bSymbols)
	}
	for i := 0; i < n; i++ {
		as, bs := aSymbols[i], bSymbols[i]
		if as == bs {
			continue
		}
		return resolve(as) < resolve(bs)
	}
	return len(aSymbols) < len(bSymbols)
}

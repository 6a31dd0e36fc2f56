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

// Package statname implements the compact, length-prefixed byte encoding
// used to represent a sequence of interned symboltable.Symbol values as a
// single metric name.
//
// A StatName is a read-only view over bytes owned elsewhere (a
// StatNameStorage, a RawStatData's inline name field, or a larger buffer
// several StatNames are packed into); it carries no reference count of its
// own. Building one from scratch goes through a SymbolEncoding, which knows
// how to grow a symbol list and flush it into a caller-supplied buffer.
//
// None of the types here talk to a symbol table directly. Pool, Set, and
// StorageSet accept any type satisfying the small Encoder/Releaser
// interfaces, which symboltable.Table implements; this keeps the dependency
// edge pointing one way (symboltable depends on statname for the wire
// format, not the reverse).
package statname

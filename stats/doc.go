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

// Package stats ties the symbol table, StatName encoding, and either
// StatDataAllocator variant together into a single Store that hands out
// Counters and Gauges by dotted name, the way an application actually wants
// to consume this subsystem.
//
// A Store interns every name it is asked for exactly once: the first
// Counter or Gauge call for a given name allocates a backing
// rawstatdata.RawStatData and registers it with a prometheus.Registry;
// every later call for the same name returns the same handle. Push exports
// differentially to a Tally scope and, when WithMeter was given, mirrors
// onto a net/metrics scope as well. Closing the Store releases every name
// back to the symbol table and every record back to its allocator.
package stats

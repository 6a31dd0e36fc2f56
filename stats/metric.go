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

package stats

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uber-go/tally"
	"go.uber.org/net/metrics"
	"go.uber.org/proxystats/statname"
)

// A Counter is a monotonically increasing value backed by a single
// RawStatData record. It implements prometheus.Collector so it can also be
// registered directly with a prometheus.Registry.
type Counter interface {
	prometheus.Collector

	Name() string
	Inc() uint64
	Add(delta uint64) uint64
	Load() uint64
}

// A Gauge is a point-in-time measurement backed by a single RawStatData
// record. It implements prometheus.Collector so it can also be registered
// directly with a prometheus.Registry.
type Gauge interface {
	prometheus.Collector

	Name() string
	Add(delta uint64) uint64
	Sub(delta uint64) uint64
	Store(val uint64)
	Load() uint64
}

// metric is the internal interface every Store entry satisfies, letting
// Store.push, Store.Iterate, and Store.Close treat counters and gauges
// uniformly. push exports one tick's worth of data to the Tally scope and,
// when the Store carries one, mirrors it to a net/metrics meter.
type metric interface {
	prometheus.Collector
	push(scope tally.Scope, meter *metrics.Scope)
	statName() statname.StatName
	load() uint64
}

// scrubName rewrites a dotted proxy stat name into the character set
// Prometheus and net/metrics accept for metric names: runes outside
// [a-zA-Z0-9_] become '_', and a leading digit gains a '_' prefix. Tally
// accepts dotted names as-is, so the push path keeps the raw name.
func scrubName(name string) string {
	scrubbed := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
	if scrubbed == "" || (scrubbed[0] >= '0' && scrubbed[0] <= '9') {
		scrubbed = "_" + scrubbed
	}
	return scrubbed
}

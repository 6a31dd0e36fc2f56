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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uber-go/tally"
	"go.uber.org/net/metrics"
	"go.uber.org/proxystats/rawstatdata"
	"go.uber.org/proxystats/statname"
)

type counter struct {
	name  string
	sn    statname.StatName
	rec   *rawstatdata.RawStatData
	desc  *prometheus.Desc
	last  uint64
	tally tally.Counter
	net   *metrics.Counter
}

func newCounter(name string, sn statname.StatName, rec *rawstatdata.RawStatData) *counter {
	return &counter{
		name: name,
		sn:   sn,
		rec:  rec,
		desc: prometheus.NewDesc(scrubName(name), "counter "+name, nil, nil),
	}
}

func (c *counter) Name() string { return c.name }

func (c *counter) Inc() uint64 { return c.rec.Value().Inc() }

func (c *counter) Add(delta uint64) uint64 { return c.rec.Value().Add(delta) }

func (c *counter) Load() uint64 { return c.rec.Value().Load() }

func (c *counter) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *counter) Collect(ch chan<- prometheus.Metric) {
	m, err := prometheus.NewConstMetric(c.desc, prometheus.CounterValue, float64(c.Load()))
	if err == nil {
		ch <- m
	}
}

// diff returns the change in value since the last call to diff, for
// differential exporters like Tally.
func (c *counter) diff() uint64 {
	cur := c.Load()
	d := cur - c.last
	c.last = cur
	return d
}

func (c *counter) statName() statname.StatName { return c.sn }

func (c *counter) load() uint64 { return c.Load() }

func (c *counter) push(scope tally.Scope, meter *metrics.Scope) {
	d := int64(c.diff())
	if c.tally == nil {
		c.tally = scope.Counter(c.name)
	}
	c.tally.Inc(d)
	if meter == nil {
		return
	}
	if c.net == nil {
		net, err := meter.Counter(metrics.Spec{Name: scrubName(c.name), Help: "counter " + c.name})
		if err != nil {
			return
		}
		c.net = net
	}
	c.net.Add(d)
}

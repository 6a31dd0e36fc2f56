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

type gauge struct {
	name  string
	sn    statname.StatName
	rec   *rawstatdata.RawStatData
	desc  *prometheus.Desc
	tally tally.Gauge
	net   *metrics.Gauge
}

func newGauge(name string, sn statname.StatName, rec *rawstatdata.RawStatData) *gauge {
	return &gauge{
		name: name,
		sn:   sn,
		rec:  rec,
		desc: prometheus.NewDesc(scrubName(name), "gauge "+name, nil, nil),
	}
}

func (g *gauge) Name() string { return g.name }

func (g *gauge) Add(delta uint64) uint64 { return g.rec.Value().Add(delta) }

func (g *gauge) Sub(delta uint64) uint64 { return g.rec.Value().Sub(delta) }

func (g *gauge) Store(val uint64) { g.rec.Value().Store(val) }

func (g *gauge) Load() uint64 { return g.rec.Value().Load() }

func (g *gauge) Describe(ch chan<- *prometheus.Desc) { ch <- g.desc }

func (g *gauge) Collect(ch chan<- prometheus.Metric) {
	m, err := prometheus.NewConstMetric(g.desc, prometheus.GaugeValue, float64(g.Load()))
	if err == nil {
		ch <- m
	}
}

func (g *gauge) statName() statname.StatName { return g.sn }

func (g *gauge) load() uint64 { return g.Load() }

func (g *gauge) push(scope tally.Scope, meter *metrics.Scope) {
	cur := g.Load()
	if g.tally == nil {
		g.tally = scope.Gauge(g.name)
	}
	g.tally.Update(float64(cur))
	if meter == nil {
		return
	}
	if g.net == nil {
		net, err := meter.Gauge(metrics.Spec{Name: scrubName(g.name), Help: "gauge " + g.name})
		if err != nil {
			return
		}
		g.net = net
	}
	g.net.Store(int64(cur))
}

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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/proxystats/rawstatdata"
)

func TestCounterIncAndAdd(t *testing.T) {
	rec := rawstatdata.NewRecord(rawstatdata.DefaultStatsOptions())
	c := newCounter("cx_total", nil, rec)

	c.Inc()
	c.Add(4)
	assert.Equal(t, uint64(5), c.Load())
	assert.Equal(t, "cx_total", c.Name())
}

func TestCounterDiffTracksSinceLastPush(t *testing.T) {
	rec := rawstatdata.NewRecord(rawstatdata.DefaultStatsOptions())
	c := newCounter("cx_total", nil, rec)

	c.Add(10)
	assert.Equal(t, uint64(10), c.diff())
	assert.Equal(t, uint64(0), c.diff())
	c.Add(5)
	assert.Equal(t, uint64(5), c.diff())
}

func TestCounterCollectEmitsConstMetric(t *testing.T) {
	rec := rawstatdata.NewRecord(rawstatdata.DefaultStatsOptions())
	c := newCounter("cx_total", nil, rec)
	c.Add(7)

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	m := <-ch
	var out dto.Metric
	a := assert.New(t)
	a.NoError(m.Write(&out))
	a.Equal(float64(7), out.GetCounter().GetValue())
}

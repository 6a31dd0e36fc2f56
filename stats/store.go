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
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/net/metrics"
	"go.uber.org/proxystats/rawstatdata"
	"go.uber.org/proxystats/statname"
	"go.uber.org/proxystats/symboltable"
	"go.uber.org/zap"
)

// Allocator is the subset of statdataalloc.HeapAllocator and
// blockstats.Block that a Store needs: both satisfy this interface without
// any adapter.
type Allocator interface {
	Alloc(name string) (*rawstatdata.RawStatData, error)
	Free(rec *rawstatdata.RawStatData)
}

// errWrongKind is returned when a name already exists as the other kind of
// metric (e.g. Gauge was called for a name already registered as a Counter).
var errWrongKind = errors.New("stats: name already registered as a different metric kind")

// A Store interns stat names through a symbol table, backs their values
// with an Allocator, and exposes them as Prometheus and Tally metrics.
type Store struct {
	mu        sync.Mutex
	table     *symboltable.Table
	pool      *statname.Pool
	alloc     Allocator
	cache     map[string]metric
	prom      *prometheus.Registry
	federated []prometheus.Registerer
	meter     *metrics.Scope
	handler   http.Handler
	pushing   atomic.Bool
	logger    *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger overrides the store's logger, used to report fatal invariant
// violations surfaced from the symbol table or allocator.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// Federated links a Store with a prometheus.Registerer, so every metric
// created by the Store also registers there.
func Federated(reg prometheus.Registerer) StoreOption {
	return func(s *Store) { s.federated = append(s.federated, reg) }
}

// WithMeter mirrors every pushed metric onto a net/metrics scope alongside
// the Tally export: counter diffs are added, gauge snapshots stored, on
// each push tick.
func WithMeter(meter *metrics.Scope) StoreOption {
	return func(s *Store) { s.meter = meter }
}

// NewStore builds a Store that interns names through table and backs their
// values with alloc.
func NewStore(table *symboltable.Table, alloc Allocator, opts ...StoreOption) *Store {
	prom := prometheus.NewRegistry()
	s := &Store{
		table:   table,
		pool:    statname.NewPool(table, table),
		alloc:   alloc,
		cache:   make(map[string]metric),
		prom:    prom,
		handler: promhttp.HandlerFor(prom, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Counter returns the Counter for name, creating and registering it on
// first use.
func (s *Store) Counter(name string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.cache[name]; ok {
		c, ok := m.(*counter)
		if !ok {
			return nil, errWrongKind
		}
		return c, nil
	}

	rec, err := s.alloc.Alloc(name)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	sn, err := s.pool.Add(name)
	if err != nil {
		s.alloc.Free(rec)
		return nil, fmt.Errorf("stats: %w", err)
	}

	c := newCounter(name, sn, rec)
	if err := s.register(c); err != nil {
		s.alloc.Free(rec)
		return nil, err
	}
	s.cache[name] = c
	return c, nil
}

// Gauge returns the Gauge for name, creating and registering it on first
// use.
func (s *Store) Gauge(name string) (Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.cache[name]; ok {
		g, ok := m.(*gauge)
		if !ok {
			return nil, errWrongKind
		}
		return g, nil
	}

	rec, err := s.alloc.Alloc(name)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	sn, err := s.pool.Add(name)
	if err != nil {
		s.alloc.Free(rec)
		return nil, fmt.Errorf("stats: %w", err)
	}

	g := newGauge(name, sn, rec)
	if err := s.register(g); err != nil {
		s.alloc.Free(rec)
		return nil, err
	}
	s.cache[name] = g
	return g, nil
}

func (s *Store) register(m metric) error {
	if err := s.prom.Register(m); err != nil {
		s.logger.Error("stats: failed to register metric", zap.Error(err))
		return fmt.Errorf("stats: %w", err)
	}
	for _, fed := range s.federated {
		if err := fed.Register(m); err != nil {
			s.logger.Error("stats: failed to register metric with federated registerer", zap.Error(err))
			return fmt.Errorf("stats: %w", err)
		}
	}
	return nil
}

// Iterate calls fn once for every currently registered metric with its name
// and a snapshot of its value, in no particular order. Names come from
// decoding each metric's StatName back through the symbol table rather than
// from the lookup cache, so what callers see is exactly what the encoded
// records say.
func (s *Store) Iterate(fn func(name string, value uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		fn(s.table.Decode(m.statName()), m.load())
	}
}

// Len reports the number of distinct names currently registered.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// ServeHTTP implements http.Handler, serving a Prometheus scrape page for
// every metric this Store has created.
func (s *Store) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

// Push starts a goroutine that periodically exports every metric to a
// Tally scope. A Store can only push to a single scope at a time; calling
// Push a second time before stopping the first returns an error.
func (s *Store) Push(scope tally.Scope, tick time.Duration) (context.CancelFunc, error) {
	if s.pushing.Swap(true) {
		return nil, errors.New("stats: already pushing to Tally")
	}
	p := newPusher(s, scope, tick)
	go p.start()
	return p.stopFunc, nil
}

func (s *Store) push(scope tally.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		m.push(scope, s.meter)
	}
}

// Describe implements prometheus.Collector, so a Store can be registered
// with an outside prometheus.Registry as a single collector.
func (s *Store) Describe(ch chan<- *prometheus.Desc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (s *Store) Collect(ch chan<- prometheus.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		m.Collect(ch)
	}
}

// Close releases every record back to the Allocator and every name back to
// the symbol table. The Store must not be used afterward.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, m := range s.cache {
		switch v := m.(type) {
		case *counter:
			s.alloc.Free(v.rec)
		case *gauge:
			s.alloc.Free(v.rec)
		}
		delete(s.cache, name)
	}
	s.pool.Clear()
}

type pusher struct {
	store   *Store
	scope   tally.Scope
	ticker  *time.Ticker
	stop    chan struct{}
	stopped chan struct{}
}

func newPusher(s *Store, scope tally.Scope, tick time.Duration) *pusher {
	return &pusher{
		store:   s,
		scope:   scope,
		ticker:  time.NewTicker(tick),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *pusher) start() {
	defer close(p.stopped)
	defer p.store.push(p.scope)

	for {
		select {
		case <-p.stop:
			return
		case <-p.ticker.C:
			p.store.push(p.scope)
		}
	}
}

func (p *pusher) stopFunc() {
	p.ticker.Stop()
	close(p.stop)
	<-p.stopped
	p.store.pushing.Store(false)
}

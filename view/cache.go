// Package view caches pre-constructed view instances so that opening a view
// of a known type does not pay the full construction cost on the UI path.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/viewfabric/reactview/api"
	"github.com/viewfabric/reactview/common"
	"github.com/viewfabric/reactview/eventloop"
	"github.com/viewfabric/reactview/log"
	"github.com/viewfabric/reactview/metrics"
	"github.com/viewfabric/reactview/otel"
)

// ErrCacheClosed is returned by AcquireOrCreate after Close.
var ErrCacheClosed = errors.New("view cache is closed")

// View is a constructed view instance the cache can hand out or release.
type View = api.View

// Factory constructs view instances of one type. The cache keeps at most
// one instance per factory ID. Background builds run on the cache's event
// loop, so New must not post to that loop and wait.
type Factory = api.ViewFactory

type entryState int

const (
	statePending entryState = iota
	stateReady
)

type entry struct {
	state entryState
	view  View
}

// Cache holds at most one pre-built instance per view type. Consuming an
// instance schedules a low-priority replacement build whose preconditions
// are checked when the build actually runs, not when it was scheduled.
type Cache struct {
	ctx    context.Context
	loop   *eventloop.Loop
	opts   *common.Options
	logger *log.Logger
	mtr    *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	nowFn func() time.Time
}

// NewCache creates a cache that schedules background builds on loop.
func NewCache(ctx context.Context, loop *eventloop.Loop, opts *common.Options, logger *log.Logger) *Cache {
	return &Cache{
		ctx:     ctx,
		loop:    loop,
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
		nowFn:   time.Now,
	}
}

// UseMetrics publishes the cache's metrics through m.
func (c *Cache) UseMetrics(m *metrics.Metrics) {
	c.mtr = m
}

// AcquireOrCreate returns a view for fac, consuming the cached instance if
// one is ready and constructing one synchronously otherwise. Either way a
// replacement build is scheduled at low priority.
func (c *Cache) AcquireOrCreate(fac Factory) (View, error) {
	id := fac.ID()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if e := c.entries[id]; e != nil && e.state == stateReady {
		delete(c.entries, id)
		c.mu.Unlock()

		c.logger.Debugf("ViewCache:AcquireOrCreate", "hit for %q", id)
		if c.mtr != nil {
			c.mtr.ViewCacheHits.Inc()
		}
		c.scheduleRefill(fac)
		return e.view, nil
	}
	c.mu.Unlock()

	c.logger.Debugf("ViewCache:AcquireOrCreate", "miss for %q", id)
	if c.mtr != nil {
		c.mtr.ViewCacheMisses.Inc()
	}

	v, err := c.construct(fac)
	if err != nil {
		return nil, err
	}
	c.scheduleRefill(fac)
	return v, nil
}

func (c *Cache) construct(fac Factory) (View, error) {
	ctx, span := otel.Trace(c.ctx, "view_construct",
		trace.WithAttributes(attribute.String("view_type", fac.ID())))
	defer span.End()

	start := c.nowFn()
	v, err := fac.New(ctx)
	if c.mtr != nil {
		c.mtr.ViewConstructSeconds.Observe(c.nowFn().Sub(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("constructing view %q: %w", fac.ID(), err)
	}
	return v, nil
}

// scheduleRefill posts a low-priority build of a replacement instance. The
// task re-checks every precondition when it runs: preload can be turned
// off, the cache can fill up or close, and another build can land first,
// all between scheduling and execution.
func (c *Cache) scheduleRefill(fac Factory) {
	if !c.opts.EnableViewPreload || !fac.Preload() {
		return
	}

	id := fac.ID()
	posted := c.loop.PostIdle(func() {
		if c.loop.Stopping() {
			return
		}

		c.mu.Lock()
		if c.closed || c.entries[id] != nil || len(c.entries) >= c.opts.PreloadedCacheEntries {
			c.mu.Unlock()
			return
		}
		e := &entry{state: statePending}
		c.entries[id] = e
		c.mu.Unlock()

		v, err := c.construct(fac)

		c.mu.Lock()
		if err != nil {
			delete(c.entries, id)
			c.mu.Unlock()
			c.logger.Warnf("ViewCache:refill", "%v", err)
			return
		}
		if c.closed || c.entries[id] != e {
			// Closed or invalidated while building.
			c.mu.Unlock()
			v.Close()
			return
		}
		e.state = stateReady
		e.view = v
		c.mu.Unlock()

		c.logger.Debugf("ViewCache:refill", "preloaded %q", id)
		if c.mtr != nil {
			c.mtr.ViewsPreloaded.Inc()
		}
	})
	if !posted {
		c.logger.Debugf("ViewCache:scheduleRefill", "loop stopped, not refilling %q", id)
	}
}

// Invalidate drops the cached instance for a view type, releasing it if one
// was ready. A build in flight for the type is discarded when it lands.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	e := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	if e != nil && e.state == stateReady {
		e.view.Close()
	}
}

// InvalidateAll drops every cached instance, releasing ready ones. Used
// when styling changes make any pre-built view stale.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	ready := make([]View, 0, len(c.entries))
	for id, e := range c.entries {
		if e.state == stateReady {
			ready = append(ready, e.view)
		}
		delete(c.entries, id)
	}
	c.mu.Unlock()

	for _, v := range ready {
		v.Close()
	}
}

// Len reports how many entries, pending or ready, the cache holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases every ready instance and rejects further use. In-flight
// builds release their result when they land.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ready := make([]View, 0, len(c.entries))
	for id, e := range c.entries {
		if e.state == stateReady {
			ready = append(ready, e.view)
		}
		delete(c.entries, id)
	}
	c.mu.Unlock()

	for _, v := range ready {
		v.Close()
	}
}

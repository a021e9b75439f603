package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewfabric/reactview/common"
	"github.com/viewfabric/reactview/eventloop"
	"github.com/viewfabric/reactview/log"
)

type fakeView struct {
	closed atomic.Bool
}

func (v *fakeView) Close() { v.closed.Store(true) }

// countingFactory builds fakeViews and remembers every instance it made.
type countingFactory struct {
	typeID  string
	preload bool

	mu    sync.Mutex
	built []*fakeView
	errFn func() error
}

func newCountingFactory(typeID string, preload bool) *countingFactory {
	return &countingFactory{typeID: typeID, preload: preload}
}

func (f *countingFactory) ID() string    { return f.typeID }
func (f *countingFactory) Preload() bool { return f.preload }

func (f *countingFactory) New(ctx context.Context) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errFn != nil {
		if err := f.errFn(); err != nil {
			return nil, err
		}
	}
	v := &fakeView{}
	f.built = append(f.built, v)
	return v, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func newTestCache(t *testing.T, opts *common.Options) (*Cache, *eventloop.Loop) {
	t.Helper()

	loop := eventloop.New(log.NewNullLogger())
	t.Cleanup(loop.Stop)

	c := NewCache(context.Background(), loop, opts, log.NewNullLogger())
	t.Cleanup(c.Close)

	return c, loop
}

func TestCacheMissConstructsSynchronously(t *testing.T) {
	t.Parallel()

	opts := common.NewOptions()
	opts.EnableViewPreload = false
	c, _ := newTestCache(t, opts)

	fac := newCountingFactory("settings", true)
	v, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, 1, fac.count())
	// Preload is off, so no replacement build was scheduled.
	assert.Equal(t, 0, c.Len())
}

func TestCacheHitConsumesPreloadedInstance(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, common.NewOptions())

	fac := newCountingFactory("editor", true)
	first, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)

	// The miss schedules a background replacement build.
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 2, fac.count())

	cached := fac.built[1]
	second, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, cached, second)

	// Consuming the entry schedules yet another replacement.
	require.Eventually(t, func() bool { return fac.count() == 3 }, time.Second, time.Millisecond)
}

func TestCacheSkipsPreloadForNonPreloadableFactory(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, common.NewOptions())

	fac := newCountingFactory("modal", false)
	_, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fac.count())
	assert.Equal(t, 0, c.Len())
}

func TestCacheRefillRechecksAtRunTime(t *testing.T) {
	t.Parallel()

	opts := common.NewOptions()
	c, loop := newTestCache(t, opts)

	// Hold the loop so the refill stays queued.
	gate := make(chan struct{})
	loop.Post(func() { <-gate })

	fac := newCountingFactory("report", true)
	_, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)

	// Close between scheduling and execution; the queued refill must see
	// the closed cache and build nothing.
	c.Close()
	close(gate)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fac.count())
}

func TestCacheHonorsEntryLimit(t *testing.T) {
	t.Parallel()

	opts := common.NewOptions()
	opts.PreloadedCacheEntries = 1
	c, _ := newTestCache(t, opts)

	facA := newCountingFactory("a", true)
	facB := newCountingFactory("b", true)

	_, err := c.AcquireOrCreate(facA)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)

	_, err = c.AcquireOrCreate(facB)
	require.NoError(t, err)

	// The second refill runs but finds the cache full.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, facB.count())
}

func TestCacheInvalidateReleasesInstance(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, common.NewOptions())

	fac := newCountingFactory("editor", true)
	_, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)

	cached := fac.built[1]
	c.Invalidate("editor")

	assert.Equal(t, 0, c.Len())
	assert.True(t, cached.closed.Load())
}

func TestCacheInvalidateAll(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, common.NewOptions())

	facA := newCountingFactory("a", true)
	facB := newCountingFactory("b", true)
	_, err := c.AcquireOrCreate(facA)
	require.NoError(t, err)
	_, err = c.AcquireOrCreate(facB)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, time.Millisecond)

	cachedA, cachedB := facA.built[1], facB.built[1]
	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	assert.True(t, cachedA.closed.Load())
	assert.True(t, cachedB.closed.Load())
}

func TestCacheRefillFailureLeavesNoEntry(t *testing.T) {
	t.Parallel()

	c, loop := newTestCache(t, common.NewOptions())

	fac := newCountingFactory("flaky", true)
	boom := errors.New("boom")
	var failNext atomic.Bool
	fac.errFn = func() error {
		if failNext.Load() {
			return boom
		}
		return nil
	}

	// Hold the loop so the refill cannot run before the factory is told
	// to fail.
	gate := make(chan struct{})
	loop.Post(func() { <-gate })

	_, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)
	failNext.Store(true)
	close(gate)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, fac.count())
}

func TestCacheCloseReleasesReadyInstances(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, common.NewOptions())

	fac := newCountingFactory("editor", true)
	_, err := c.AcquireOrCreate(fac)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)

	cached := fac.built[1]
	c.Close()

	assert.True(t, cached.closed.Load())

	_, err = c.AcquireOrCreate(fac)
	assert.ErrorIs(t, err, ErrCacheClosed)
}

package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewfabric/reactview/log"
)

func TestLoopRunsPostedTasks(t *testing.T) {
	t.Parallel()

	l := New(log.NewNullLogger())
	defer l.Stop()

	done := make(chan struct{})
	require.True(t, l.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task to run")
	}
}

func TestLoopIdleRunsAfterNormal(t *testing.T) {
	t.Parallel()

	l := New(log.NewNullLogger())
	defer l.Stop()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Task {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	// Block the loop so both queues fill up before anything runs.
	gate := make(chan struct{})
	require.True(t, l.Post(func() { <-gate }))

	require.True(t, l.PostIdle(record("idle")))
	require.True(t, l.Post(record("normal1")))
	require.True(t, l.Post(record("normal2")))

	done := make(chan struct{})
	require.True(t, l.PostIdle(func() { close(done) }))
	close(gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for idle task to run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"normal1", "normal2", "idle"}, order)
}

func TestLoopStop(t *testing.T) {
	t.Parallel()

	l := New(log.NewNullLogger())
	l.Stop()

	assert.True(t, l.Stopping())
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.PostIdle(func() {}))

	// Stop is idempotent.
	l.Stop()
}

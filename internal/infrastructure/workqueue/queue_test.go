package workqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicate(t *testing.T) {
	q := New(1)
	defer q.Close()

	require.NoError(t, q.Register(1, func() {}))
	assert.ErrorIs(t, q.Register(1, func() {}), ErrDuplicateKey)
}

func TestScheduleUnknownKey(t *testing.T) {
	q := New(1)
	defer q.Close()

	assert.False(t, q.Schedule(42))
	q.Flush(42)
}

func TestScheduleRunsTask(t *testing.T) {
	q := New(2)
	defer q.Close()

	var runs atomic.Int32
	require.NoError(t, q.Register(0, func() { runs.Add(1) }))

	assert.True(t, q.Schedule(0))
	q.Flush(0)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, q.Busy(0))
}

func TestScheduleWhilePendingIsIdempotent(t *testing.T) {
	q := New(1)
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Register(0, func() {
		close(started)
		<-block
	}))

	var runs atomic.Int32
	require.NoError(t, q.Register(1, func() { runs.Add(1) }))

	// Occupy the only worker so key 1 stays pending.
	require.True(t, q.Schedule(0))
	<-started

	assert.True(t, q.Schedule(1))
	assert.False(t, q.Schedule(1))
	assert.False(t, q.Schedule(1))

	close(block)
	q.Flush(1)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduleWhileRunningQueuesOneFollowUp(t *testing.T) {
	q := New(4)
	defer q.Close()

	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	var runs atomic.Int32
	require.NoError(t, q.Register(0, func() {
		if runs.Add(1) == 1 {
			entered <- struct{}{}
			<-release
		}
	}))

	require.True(t, q.Schedule(0))
	<-entered

	assert.True(t, q.Schedule(0))
	assert.False(t, q.Schedule(0))
	close(release)

	q.Flush(0)
	assert.Equal(t, int32(2), runs.Load())
}

func TestRunsOfOneKeyNeverOverlap(t *testing.T) {
	q := New(8)
	defer q.Close()

	var active, maxActive, runs atomic.Int32
	require.NoError(t, q.Register(0, func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(100 * time.Microsecond)
		active.Add(-1)
		runs.Add(1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				q.Schedule(0)
			}
		}()
	}
	wg.Wait()
	q.Flush(0)

	assert.Equal(t, int32(1), maxActive.Load())
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestFlushWaitsForRunningTask(t *testing.T) {
	q := New(1)
	defer q.Close()

	var done atomic.Bool
	started := make(chan struct{})
	require.NoError(t, q.Register(0, func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	}))

	require.True(t, q.Schedule(0))
	<-started
	q.Flush(0)
	assert.True(t, done.Load())
}

func TestIndependentKeysRunConcurrently(t *testing.T) {
	q := New(2)
	defer q.Close()

	barrier := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	for key := 0; key < 2; key++ {
		require.NoError(t, q.Register(key, func() {
			wg.Done()
			<-barrier
		}))
		require.True(t, q.Schedule(key))
	}

	// Both tasks must be running at once for wg to reach zero.
	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("keys did not run concurrently")
	}
	close(barrier)
}

func TestPanicHandler(t *testing.T) {
	var got atomic.Value
	q := New(1, WithPanicHandler(func(key int, recovered interface{}) {
		got.Store(recovered)
	}))
	defer q.Close()

	var after atomic.Bool
	require.NoError(t, q.Register(0, func() { panic("boom") }))
	require.NoError(t, q.Register(1, func() { after.Store(true) }))

	q.Schedule(0)
	q.Flush(0)
	q.Schedule(1)
	q.Flush(1)

	assert.Equal(t, "boom", got.Load())
	assert.True(t, after.Load())
}

func TestCloseDrainsQueued(t *testing.T) {
	q := New(1)

	var runs atomic.Int32
	for key := 0; key < 5; key++ {
		require.NoError(t, q.Register(key, func() { runs.Add(1) }))
		q.Schedule(key)
	}
	q.Close()

	assert.Equal(t, int32(5), runs.Load())
	assert.False(t, q.Schedule(0))
	assert.ErrorIs(t, q.Register(9, func() {}), ErrClosed)

	stats := q.Stats()
	assert.Equal(t, uint64(5), stats["scheduled"])
	assert.Equal(t, uint64(5), stats["completed"])
}

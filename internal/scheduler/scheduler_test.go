package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsTask(t *testing.T) {
	s := New(1, 4)
	defer s.WaitForExecution()

	var ran int32
	done := make(chan struct{})
	ok := s.Schedule(func() {
		atomic.AddInt32(&ran, 1)
		close(done)
	}, Normal)
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

// TestMinIdleMaxBusySerializes checks the boundary behaviour from the
// design: with minIdle=2, maxBusy=2, four concurrent tasks serialise as two
// running immediately and two more running once the first two finish.
func TestMinIdleMaxBusySerializes(t *testing.T) {
	s := New(2, 2)
	defer s.WaitForExecution()

	release := make(chan struct{})
	var running int32
	var maxRunning int32
	var wg sync.WaitGroup
	wg.Add(4)

	for i := 0; i < 4; i++ {
		ok := s.Schedule(func() {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if cur <= old || atomic.CompareAndSwapInt32(&maxRunning, old, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			wg.Done()
		}, Normal)
		require.True(t, ok)
	}

	// Give the first two tasks a chance to actually start before release.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&running), int32(2))
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

func TestNoQueueFailsFastWhenSaturated(t *testing.T) {
	s := New(1, 2)
	defer s.WaitForExecution()

	release := make(chan struct{})
	defer close(release)

	for i := 0; i < 2; i++ {
		ok := s.Schedule(func() { <-release }, Normal)
		require.True(t, ok)
	}
	time.Sleep(20 * time.Millisecond)

	ok := s.Schedule(func() {}, NoQueue)
	assert.False(t, ok, "third task with NoQueue must fail fast once both workers are busy")
}

// TestPriorityRunsBeforeNormal checks that a task scheduled with Priority
// while the pool is saturated runs before any task already queued Normal.
func TestPriorityRunsBeforeNormal(t *testing.T) {
	s := New(1, 1)
	defer s.WaitForExecution()

	release := make(chan struct{})
	started := s.Schedule(func() { <-release }, Normal)
	require.True(t, started)
	time.Sleep(20 * time.Millisecond) // let the lone worker pick it up and block

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	require.True(t, s.Schedule(func() { record("normal"); wg.Done() }, Normal))
	require.True(t, s.Schedule(func() { record("priority"); wg.Done() }, Priority))

	close(release)
	wg.Wait()

	require.Len(t, order, 2)
	assert.Equal(t, "priority", order[0])
	assert.Equal(t, "normal", order[1])
}

func TestWaitForExecutionReapsAllWorkers(t *testing.T) {
	s := New(2, 4)

	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		require.True(t, s.Schedule(func() { wg.Done() }, Normal))
	}
	wg.Wait()

	s.WaitForExecution()
	assert.Equal(t, 0, s.GetThreadCount())
	assert.Equal(t, 0, s.GetIdleThreadCount())
	assert.Equal(t, 0, s.GetBusyThreadCount())
}

func TestObservablesReflectBusyAndIdle(t *testing.T) {
	s := New(1, 2)
	defer s.WaitForExecution()

	release := make(chan struct{})
	require.True(t, s.Schedule(func() { <-release }, Normal))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, s.GetBusyThreadCount())
	assert.Equal(t, 1, s.GetThreadCount())
	assert.GreaterOrEqual(t, s.GetMaxThreadCount(), 1)

	close(release)
}

package gls

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveMutexReentrantFromSameGoroutine(t *testing.T) {
	var r RecursiveMutex
	r.Lock()
	// A second Lock from the same goroutine must not deadlock.
	done := make(chan struct{})
	go func() {
		// A different goroutine must block until both levels unlock.
		r.Lock()
		close(done)
		r.Unlock()
	}()

	r.Lock()
	select {
	case <-done:
		t.Fatal("other goroutine acquired the lock while this goroutine still holds it")
	case <-time.After(20 * time.Millisecond):
	}
	r.Unlock() // drop the inner re-entry; outer still held
	select {
	case <-done:
		t.Fatal("other goroutine acquired the lock while this goroutine still holds the outer level")
	case <-time.After(20 * time.Millisecond):
	}
	r.Unlock() // drop the outer level; now the other goroutine can proceed

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("other goroutine never acquired the lock after full unlock")
	}
}

func TestRecursiveMutexExcludesOtherGoroutines(t *testing.T) {
	var r RecursiveMutex
	var mu sync.Mutex
	order := make([]int, 0, 2)

	r.Lock()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Lock()
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		r.Unlock()
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	r.Unlock()

	wg.Wait()
	require.Len(t, order, 2)
	assert.Equal(t, []int{1, 2}, order)
}

func TestRecursiveMutexUnlockByNonOwnerPanics(t *testing.T) {
	var r RecursiveMutex
	r.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Panics(t, func() { r.Unlock() })
	}()
	<-done
	r.Unlock()
}

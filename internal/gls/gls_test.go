package gls

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetClearIsPerGoroutine(t *testing.T) {
	assert.Nil(t, Get())

	Set("top-level")
	assert.Equal(t, "top-level", Get())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// A fresh goroutine sees no value, even though the calling
		// goroutine just set one: the store is keyed per-goroutine.
		assert.Nil(t, Get())
		Set("child")
		assert.Equal(t, "child", Get())
		Clear()
		assert.Nil(t, Get())
	}()
	wg.Wait()

	// The top-level goroutine's value survived the child's Set/Clear.
	assert.Equal(t, "top-level", Get())
	Clear()
	assert.Nil(t, Get())
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	defer Clear()
	Set(1)
	assert.Equal(t, 1, Get())
	Set(2)
	assert.Equal(t, 2, Get())
}

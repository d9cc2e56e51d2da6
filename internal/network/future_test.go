package network

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolvesOnce(t *testing.T) {
	f, resolve := NewFuture[int]()

	_, ok := f.Value()
	assert.False(t, ok)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if resolve(v) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	again, ok := f.Value()
	assert.True(t, ok)
	assert.Equal(t, v, again)
}

func TestFutureAwaitHonoursContext(t *testing.T) {
	f, _ := NewFuture[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

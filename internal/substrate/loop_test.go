package substrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(nil, nil)
	require.NoError(t, l.Start())
	t.Cleanup(l.Stop)
	return l
}

func TestPostPreservesOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, l.Post(func(*goja.Runtime) { got = append(got, i) }))
	}
	require.NoError(t, l.Call(context.Background(), func(*goja.Runtime) {}))

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestJobsShareOneRuntime(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Post(func(vm *goja.Runtime) {
		_, err := vm.RunString(`var counter = 41`)
		assert.NoError(t, err)
	}))

	var v int64
	require.NoError(t, l.Call(context.Background(), func(vm *goja.Runtime) {
		res, err := vm.RunString(`++counter`)
		if assert.NoError(t, err) {
			v = res.ToInteger()
		}
	}))
	assert.Equal(t, int64(42), v)
}

func TestGoDeliversCompletionOnLoop(t *testing.T) {
	l := startLoop(t)

	done := make(chan string, 1)
	require.NoError(t, l.Go(func(ctx context.Context) Job {
		result := "from io"
		return func(vm *goja.Runtime) {
			vm.Set("result", result)
			done <- vm.Get("result").String()
		}
	}))

	select {
	case v := <-done:
		assert.Equal(t, "from io", v)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
	}
}

func TestAfterFiresOnceAndCancel(t *testing.T) {
	l := startLoop(t)

	var mu sync.Mutex
	fired := 0
	_, err := l.After(10*time.Millisecond, func(*goja.Runtime) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	require.NoError(t, err)

	cancelled, err := l.After(10*time.Millisecond, func(*goja.Runtime) {
		t.Error("cancelled timer fired")
	})
	require.NoError(t, err)
	l.Cancel(cancelled)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, fired)
	mu.Unlock()
}

func TestStopCancelsAndDrainsInflight(t *testing.T) {
	l := New(nil, nil)
	require.NoError(t, l.Start())

	delivered := make(chan error, 1)
	started := make(chan struct{})
	require.NoError(t, l.Go(func(ctx context.Context) Job {
		close(started)
		<-ctx.Done()
		err := ctx.Err()
		return func(*goja.Runtime) { delivered <- err }
	}))
	<-started

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop deadlocked")
	}

	select {
	case err := <-delivered:
		assert.ErrorIs(t, err, context.Canceled)
	default:
		t.Fatal("in-flight completion was not drained before stop")
	}
}

func TestStopIsIdempotentAndRejectsWork(t *testing.T) {
	l := New(nil, nil)
	require.NoError(t, l.Start())

	l.Stop()
	l.Stop()

	assert.True(t, l.Stopped())
	assert.ErrorIs(t, l.Post(func(*goja.Runtime) {}), ErrStopped)
	assert.ErrorIs(t, l.Go(func(context.Context) Job { return nil }), ErrStopped)
	_, err := l.After(time.Millisecond, func(*goja.Runtime) {})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, l.Start(), ErrStopped)
}

func TestStopWithoutStart(t *testing.T) {
	l := New(nil, nil)
	assert.NotPanics(t, l.Stop)
}

func TestStopInterruptsRunawayScript(t *testing.T) {
	l := New(nil, nil)
	l.SetDrainTimeout(50 * time.Millisecond)
	require.NoError(t, l.Start())

	require.NoError(t, l.Post(func(vm *goja.Runtime) {
		_, _ = vm.RunString(`for(;;){}`)
	}))

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt runaway script")
	}
}

func TestPanickingJobDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Post(func(*goja.Runtime) { panic("boom") }))

	ran := false
	require.NoError(t, l.Call(context.Background(), func(*goja.Runtime) { ran = true }))
	assert.True(t, ran)
}

func TestStreamDeliversInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	finished := make(chan struct{})
	require.NoError(t, l.Stream(func(ctx context.Context, emit func(Job)) {
		for i := 0; i < 20; i++ {
			i := i
			emit(func(*goja.Runtime) { got = append(got, i) })
		}
		emit(func(*goja.Runtime) { close(finished) })
	}))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not delivered")
	}
	assert.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

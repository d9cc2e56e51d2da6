package view

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runView(t *testing.T, v View) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("view did not stop")
		}
	})
}

func TestDispatchPreservesOrder(t *testing.T) {
	v := NewHeadless(4, nil)
	runView(t, v)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		require.NoError(t, v.Dispatch(context.Background(), func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, 5*time.Second, 5*time.Millisecond)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}

func TestDispatchSurvivesPanic(t *testing.T) {
	v := NewHeadless(0, nil)
	runView(t, v)

	require.NoError(t, v.Dispatch(context.Background(), func() { panic("boom") }))
	ran := make(chan struct{})
	require.NoError(t, v.Dispatch(context.Background(), func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("loop stopped after a panicking job")
	}
}

func TestTerminate(t *testing.T) {
	v := NewHeadless(0, nil)
	done := make(chan error, 1)
	go func() { done <- v.Run(context.Background()) }()

	v.Terminate()
	v.Terminate()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Terminate")
	}
	assert.ErrorIs(t, v.Dispatch(context.Background(), func() {}), ErrTerminated)
}

func TestDispatchUnblocksOnTerminate(t *testing.T) {
	v := NewHeadless(1, nil)
	require.NoError(t, v.Dispatch(context.Background(), func() {}))

	errc := make(chan error, 1)
	go func() { errc <- v.Dispatch(context.Background(), func() {}) }()

	time.Sleep(10 * time.Millisecond)
	v.Terminate()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrTerminated)
	case <-time.After(5 * time.Second):
		t.Fatal("Dispatch stayed blocked")
	}
}

func TestDispatchUnblocksOnContextDone(t *testing.T) {
	v := NewHeadless(1, nil)
	require.NoError(t, v.Dispatch(context.Background(), func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- v.Dispatch(ctx, func() {}) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Dispatch stayed blocked")
	}
}

func TestHeadlessRecords(t *testing.T) {
	v := NewHeadless(0, nil)
	runView(t, v)

	v.SetTitle("Demo")
	v.SetHTML("<p>hi</p>")
	require.NoError(t, v.Dispatch(context.Background(), func() { v.Eval("a()") }))
	require.NoError(t, v.Dispatch(context.Background(), func() { v.Eval("b()") }))

	assert.Eventually(t, func() bool { return len(v.Evals()) == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a()", "b()"}, v.Evals())
	assert.Equal(t, "Demo", v.Title())
	assert.Equal(t, "<p>hi</p>", v.HTML())
}

func TestHeadlessSend(t *testing.T) {
	v := NewHeadless(0, nil)
	assert.ErrorIs(t, v.Send(context.Background(), "{}"), ErrNoReceiver)

	var got string
	v.Bind(func(_ context.Context, payload string) { got = payload })
	require.NoError(t, v.Send(context.Background(), `{"command":"x"}`))
	assert.Equal(t, `{"command":"x"}`, got)
}

func TestInjectScript(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "end of head",
			html: "<!DOCTYPE html><html><head><title>t</title></head><body><p>x</p></body></html>",
			want: "<title>t</title><script>var a = 1;</script></head>",
		},
		{
			name: "start of body",
			html: "<body><p>x</p></body>",
			want: "<body><script>var a = 1;</script><p>x</p>",
		},
		{
			name: "fragment",
			html: "<p>x</p>",
			want: "<body><script>var a = 1;</script><p>x</p>",
		},
		{
			name: "header is not head",
			html: "<body><header>h</header></body>",
			want: "<body><script>var a = 1;</script><header>h</header>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := InjectScript(tt.html, "var a = 1;")
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Equal(t, 1, strings.Count(out, "<script>"))
		})
	}
}

func TestInjectScriptKeepsDoctype(t *testing.T) {
	out, err := InjectScript("<!DOCTYPE html><html><head></head><body></body></html>", "x()")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
}

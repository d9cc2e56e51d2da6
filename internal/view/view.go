package view

import (
	"context"
	"errors"
)

var (
	// ErrTerminated is returned by Dispatch once the view has stopped.
	ErrTerminated = errors.New("view: terminated")
	// ErrNoReceiver is returned when a page message arrives before Bind.
	ErrNoReceiver = errors.New("view: no receiver bound")
)

// DefaultDispatchSize is used when a non-positive dispatch size is given.
const DefaultDispatchSize = 256

// Receiver handles a native_send payload from the page. It may be called
// from any UI-side goroutine.
type Receiver func(ctx context.Context, payload string)

// View is the UI surface. Dispatch and Eval satisfy bridge.UI.
type View interface {
	// Dispatch queues fn on the UI loop, giving up when ctx ends.
	Dispatch(ctx context.Context, fn func()) error
	// Eval runs js in the page. Call it from the UI loop.
	Eval(js string)
	SetTitle(title string)
	SetHTML(html string)
	Bind(fn Receiver)
	// Run drives the UI loop until ctx ends or Terminate is called.
	Run(ctx context.Context) error
	Terminate()
}

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/caro-api/internal/task"
)

// ErrHandlerPanic wraps the value of a recovered handler panic.
var ErrHandlerPanic = errors.New("event handler panicked")

// Delivery is one event addressed to one subscriber.
type Delivery struct {
	HandlerID string
	Event     Event
}

// Result is the outcome of one delivery.
type Result struct {
	Delivery Delivery
	Err      error
	Panicked bool
	Duration time.Duration
}

// Failed reports whether the handler returned an error or panicked.
func (r Result) Failed() bool {
	return r.Err != nil
}

// invoke runs handler for d and converts a panic into an error.
func invoke(ctx context.Context, d Delivery, handler Handler) (result Result) {
	start := time.Now()
	result.Delivery = d

	defer func() {
		if r := recover(); r != nil {
			result.Panicked = true
			result.Err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		result.Duration = time.Since(start)
	}()

	result.Err = handler.HandleEvent(ctx, d.Event)
	return result
}

// DispatchPolicy decides where deliveries run.
type DispatchPolicy interface {
	// Dispatch arranges for run to be called exactly once for d. The
	// context given to run is not cancelled when ctx is.
	Dispatch(ctx context.Context, d Delivery, run func(ctx context.Context)) error

	// Shutdown waits for dispatched deliveries until ctx ends.
	Shutdown(ctx context.Context) error
}

// AsyncPolicy runs every delivery as a task on an Executor.
type AsyncPolicy struct {
	executor *task.Executor
}

// NewAsyncPolicy creates a policy that submits deliveries to executor.
func NewAsyncPolicy(executor *task.Executor) *AsyncPolicy {
	if executor == nil {
		panic("executor cannot be nil")
	}
	return &AsyncPolicy{executor: executor}
}

// Dispatch implements DispatchPolicy.
func (p *AsyncPolicy) Dispatch(ctx context.Context, d Delivery, run func(ctx context.Context)) error {
	return p.executor.Submit(context.WithoutCancel(ctx), task.Func{
		TaskName: d.HandlerID,
		Fn: func(ctx context.Context) error {
			run(ctx)
			return nil
		},
	})
}

// Shutdown implements DispatchPolicy.
func (p *AsyncPolicy) Shutdown(ctx context.Context) error {
	return p.executor.Shutdown(ctx)
}

// InlinePolicy runs every delivery on the publisher's goroutine before
// Dispatch returns.
type InlinePolicy struct{}

// Dispatch implements DispatchPolicy.
func (InlinePolicy) Dispatch(ctx context.Context, _ Delivery, run func(ctx context.Context)) error {
	run(context.WithoutCancel(ctx))
	return nil
}

// Shutdown implements DispatchPolicy.
func (InlinePolicy) Shutdown(context.Context) error { return nil }

var (
	_ DispatchPolicy = (*AsyncPolicy)(nil)
	_ DispatchPolicy = InlinePolicy{}
)

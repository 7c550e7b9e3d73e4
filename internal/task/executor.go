package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/sourcegraph/conc"
)

var (
	// ErrExecutorClosed is returned by Submit after Shutdown was called.
	ErrExecutorClosed = errors.New("executor is shut down")

	// ErrTaskPanicked wraps the value of a recovered task panic.
	ErrTaskPanicked = errors.New("task panicked")
)

// ExecutorConfig holds configuration options for the executor.
type ExecutorConfig struct {
	// MaxConcurrency caps the number of tasks running at once.
	// Zero or negative means unbounded.
	MaxConcurrency int
}

// Executor runs submitted tasks on their own goroutines.
type Executor struct {
	wg  conc.WaitGroup
	sem chan struct{}

	mu     sync.RWMutex
	closed bool

	logger *slog.Logger

	// errorHandler is called when a task fails or panics.
	// If nil, errors are only logged.
	errorHandler func(task Task, err error)
}

// NewExecutor creates an executor with the given configuration.
// If logger is nil, a default logger will be used.
func NewExecutor(config ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		logger: logger.With(slog.String("component", "task_executor")),
	}
	if config.MaxConcurrency > 0 {
		e.sem = make(chan struct{}, config.MaxConcurrency)
	}
	return e
}

// SetErrorHandler sets a callback for task failures. It must be called
// before the first Submit.
func (e *Executor) SetErrorHandler(handler func(task Task, err error)) {
	e.errorHandler = handler
}

// Submit schedules task to run in the background with ctx.
// When the executor is bounded and saturated, the task waits on its own
// goroutine, so Submit never blocks on running work.
func (e *Executor) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}

	e.wg.Go(func() {
		if e.sem != nil {
			e.sem <- struct{}{}
			defer func() { <-e.sem }()
		}
		e.run(ctx, task)
	})
	return nil
}

// Shutdown stops accepting tasks and waits for submitted ones to finish.
// It returns ctx.Err() if ctx ends first; the remaining tasks keep running.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor drained")
		return nil
	case <-ctx.Done():
		e.logger.Warn("executor shutdown timed out with tasks still running",
			slog.String("error", ctx.Err().Error()))
		return ctx.Err()
	}
}

func (e *Executor) run(ctx context.Context, task Task) {
	log := e.logger.With(slog.String("task", task.Name()))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("task panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		return task.Execute(ctx)
	}()

	if err == nil {
		log.Debug("task completed")
		return
	}

	log.Error("task failed", slog.String("error", err.Error()))
	if e.errorHandler != nil {
		e.errorHandler(task, err)
	}
}

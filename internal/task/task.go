package task

import "context"

// Task is a unit of background work.
type Task interface {
	// Name identifies the task in logs and metrics.
	Name() string

	// Execute runs the task logic.
	Execute(ctx context.Context) error
}

// Func adapts a function to the Task interface.
type Func struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

// Name implements Task.
func (f Func) Name() string { return f.TaskName }

// Execute implements Task.
func (f Func) Execute(ctx context.Context) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx)
}

var _ Task = Func{}

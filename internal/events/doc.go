// Package events provides the in-process domain event bus.
//
// Services publish events after their own work has committed. The bus
// hands every (event, subscriber) pair to a DispatchPolicy, which by
// default runs each delivery on its own goroutine. A delivery never
// reports back to the publisher: its outcome is captured in a Result and
// passed to the bus's FailurePolicy when it failed or panicked.
//
// Delivery is best effort. There is no retry, no ordering between
// subscribers, and nothing survives a process restart.
package events

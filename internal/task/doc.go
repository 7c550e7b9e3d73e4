// Package task runs background work on goroutines owned by an Executor.
//
// An Executor bounds how many tasks run at once, recovers panics so one
// failing task cannot take the process down, and drains in-flight work on
// Shutdown. Event delivery uses it to run subscribers off the request path.
package task

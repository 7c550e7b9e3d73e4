// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic. SQL implementations live in
// internal/platform/sqlstore and share the transaction helper defined here.
package store

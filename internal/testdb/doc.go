// Package testdb provides database fixtures for tests.
//
// New returns a migrated SQLite database in a temporary directory, so
// store and service tests run without any external service. When
// CARO_TEST_DATABASE_URL is set, NewPostgres connects to that PostgreSQL
// server instead; tests that need it skip otherwise.
//
// Tests against a shared PostgreSQL database should use WithTx, which runs
// the test body in a transaction that is always rolled back.
package testdb

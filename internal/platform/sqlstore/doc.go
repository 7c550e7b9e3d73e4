// Package sqlstore implements the store interfaces on top of database/sql.
//
// The same stores serve PostgreSQL and SQLite. Everything that differs
// between the two engines (placeholder style, row locking, error mapping,
// and the embedded migrations) is described by a Dialect, which the
// postgres and sqlite packages provide.
package sqlstore

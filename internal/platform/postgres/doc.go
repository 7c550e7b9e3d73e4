// Package postgres provides the PostgreSQL dialect for the sqlstore
// package: the pgx driver registration, the mapping of PostgreSQL error
// codes onto store errors, and the embedded schema migrations.
package postgres

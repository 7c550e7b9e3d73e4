// Package sqlite provides the SQLite dialect for the sqlstore package,
// backed by the pure Go modernc.org/sqlite driver.
//
// SQLite has no row locks. Write transactions are opened with BEGIN
// IMMEDIATE, which takes the database write lock up front, so a read
// followed by an update inside one transaction cannot interleave with
// another writer.
package sqlite

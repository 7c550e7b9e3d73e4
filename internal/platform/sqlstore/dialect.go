package sqlstore

import (
	"io/fs"

	sq "github.com/Masterminds/squirrel"
)

// Dialect describes how a database engine differs from the common SQL the
// stores emit.
type Dialect struct {
	// Name is the goose dialect name, e.g. "postgres" or "sqlite3".
	Name string

	// DriverName is the database/sql driver registered for the engine.
	DriverName string

	// Placeholder renders bind parameters.
	Placeholder sq.PlaceholderFormat

	// LockSuffix is appended to SELECT statements that must lock the row for
	// the rest of the transaction. Engines that lock the whole database on
	// write transactions leave it empty.
	LockSuffix string

	// MapError translates driver errors into store errors.
	MapError func(error) error

	// Migrations holds the goose SQL files under MigrationsDir.
	Migrations    fs.FS
	MigrationsDir string
}

func (d Dialect) builder() sq.StatementBuilderType {
	placeholder := d.Placeholder
	if placeholder == nil {
		placeholder = sq.Question
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholder)
}

func (d Dialect) mapError(err error) error {
	if err == nil || d.MapError == nil {
		return err
	}
	return d.MapError(err)
}

// lockFor appends the row lock to a select when forUpdate is set.
func (d Dialect) lockFor(b sq.SelectBuilder, forUpdate bool) sq.SelectBuilder {
	if forUpdate && d.LockSuffix != "" {
		return b.Suffix(d.LockSuffix)
	}
	return b
}

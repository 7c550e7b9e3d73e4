package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/phrazzld/caro-api/internal/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// defaultBusyTimeoutMs is how long a connection waits for the write lock
// before failing with SQLITE_BUSY.
const defaultBusyTimeoutMs = 5000

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect returns the sqlstore dialect for SQLite.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:          "sqlite3",
		DriverName:    DriverName,
		Placeholder:   sq.Question,
		MapError:      MapError,
		Migrations:    migrations,
		MigrationsDir: "migrations",
	}
}

// PrepareDSN adds the connection settings the stores rely on unless uri
// already sets them: WAL journaling, a busy timeout, immediate write
// transactions, and SQLite's own text format for timestamps.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}
		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	for _, val := range query["_pragma"] {
		if strings.HasPrefix(val, "journal_mode") {
			foundJournalMode = true
		} else if strings.HasPrefix(val, "busy_timeout") {
			foundBusyTimeout = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", defaultBusyTimeoutMs))
	}
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}
	if !query.Has("_time_format") {
		query.Set("_time_format", "sqlite")
	}

	return uri + "?" + query.Encode(), nil
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

// MapError maps a SQLite error to an appropriate store error.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	code := sqliteErr.Code()
	if _, ok := busyErrors[code]; ok {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	if code&0xFF == sqlite3.SQLITE_CONSTRAINT {
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		default:
			return fmt.Errorf("%w: constraint violation: %v", store.ErrInvalidEntity, err)
		}
	}

	return err
}

package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/caro-api/internal/platform/postgres"
	"github.com/phrazzld/caro-api/internal/platform/sqlite"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
)

// TestTimeout bounds connecting and migrating a test database.
const TestTimeout = 10 * time.Second

// DB is a migrated test database and the dialect to build stores with.
type DB struct {
	*sql.DB
	Dialect sqlstore.Dialect
}

// New returns a migrated SQLite database stored under t.TempDir.
// The connection is closed when the test ends.
func New(t testing.TB) *DB {
	t.Helper()

	dsn, err := sqlite.PrepareDSN(filepath.Join(t.TempDir(), "caro-test.db"))
	if err != nil {
		t.Fatalf("failed to prepare sqlite dsn: %v", err)
	}
	return open(t, sqlite.Dialect(), dsn)
}

// NewPostgres returns a migrated connection to the database named by
// CARO_TEST_DATABASE_URL, skipping the test when it is not set.
func NewPostgres(t testing.TB) *DB {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skipf("%s not set - skipping PostgreSQL test", DatabaseURLEnv)
	}
	return open(t, postgres.Dialect(), GetTestDatabaseURL())
}

func open(t testing.TB, dialect sqlstore.Dialect, dsn string) *DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sqlstore.Open(ctx, dialect, dsn, sqlstore.PoolOptions{ConnectTimeout: TestTimeout}, nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { CleanupDB(t, db) })

	if err := sqlstore.NewMigrator(db, dialect, nil).Up(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &DB{DB: db, Dialect: dialect}
}

// CleanupDB closes db, reporting a failure to close as a test error.
func CleanupDB(t testing.TB, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

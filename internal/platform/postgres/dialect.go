package postgres

import (
	"embed"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
)

// DriverName is the database/sql driver name registered by pgx.
const DriverName = "pgx"

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect returns the sqlstore dialect for PostgreSQL. Rows read for update
// are locked with SELECT ... FOR UPDATE.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:          "postgres",
		DriverName:    DriverName,
		Placeholder:   sq.Dollar,
		LockSuffix:    "FOR UPDATE",
		MapError:      MapError,
		Migrations:    migrations,
		MigrationsDir: "migrations",
	}
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

// Migration commands accepted by Migrator.Run.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateReset   = "reset"
	MigrateStatus  = "status"
	MigrateVersion = "version"
)

// ErrUnknownMigrationCommand is returned by Migrator.Run for an unsupported command.
var ErrUnknownMigrationCommand = errors.New("unknown migration command")

// goose keeps its dialect, base filesystem and logger in package state.
var gooseMu sync.Mutex

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at info level.
func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level. It does not exit; the failing goose call
// returns an error to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrator applies the embedded schema migrations of a dialect.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewMigrator creates a migrator for db.
func NewMigrator(db *sql.DB, dialect Dialect, logger *slog.Logger) *Migrator {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "migrations")),
	}
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.Run(ctx, MigrateUp)
}

// Version returns the schema version currently applied.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.withGoose(func(log *slog.Logger) error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Run executes one goose command against the database.
func (m *Migrator) Run(ctx context.Context, command string) error {
	dir := m.dialect.MigrationsDir
	return m.withGoose(func(log *slog.Logger) error {
		startTime := time.Now()
		log.Info("starting migration command",
			slog.String("command", command),
			slog.String("dialect", m.dialect.Name))

		var err error
		switch command {
		case MigrateUp:
			err = goose.UpContext(ctx, m.db, dir)
		case MigrateDown:
			err = goose.DownContext(ctx, m.db, dir)
		case MigrateReset:
			err = goose.ResetContext(ctx, m.db, dir)
		case MigrateStatus:
			err = goose.StatusContext(ctx, m.db, dir)
		case MigrateVersion:
			err = goose.VersionContext(ctx, m.db, dir)
		default:
			return fmt.Errorf("%w: %q (expected up, down, reset, status, or version)",
				ErrUnknownMigrationCommand, command)
		}

		if err != nil {
			log.Error("migration command failed",
				slog.String("command", command),
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))
			return fmt.Errorf("migration command '%s' failed: %w", command, err)
		}

		log.Info("migration command executed successfully",
			slog.String("command", command),
			slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))
		return nil
	})
}

func (m *Migrator) withGoose(fn func(log *slog.Logger) error) error {
	if m.dialect.Migrations == nil {
		return errors.New("dialect has no migrations")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	log := m.logger.With(slog.String("correlation_id", uuid.New().String()))

	goose.SetBaseFS(m.dialect.Migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{logger: log})
	if err := goose.SetDialect(m.dialect.Name); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	return fn(log)
}

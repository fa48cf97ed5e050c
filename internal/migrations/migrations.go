// Package migrations holds the schema for each supported SQL backend and
// applies it with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"todoTree/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Files returns the migration files of one dialect.
func Files(d Dialect) (fs.FS, error) {
	switch d {
	case Postgres, SQLite:
		return fs.Sub(files, string(d))
	}
	return nil, fmt.Errorf("unknown migration dialect %q", d)
}

// Up applies every pending migration. db is closed when Up returns, so pass
// a handle opened for this purpose. Cancelling ctx stops after the migration
// in flight.
func Up(ctx context.Context, db *sql.DB, d Dialect) error {
	m, err := open(ctx, db, d)
	if err != nil {
		return err
	}
	defer closeMigrate(m)
	defer stopOnDone(ctx, m)()

	logger.Info("Migrations: applying", zap.String("dialect", string(d)))
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return logVersion(m, d)
}

// Down rolls back every migration. db is closed when Down returns.
func Down(ctx context.Context, db *sql.DB, d Dialect) error {
	m, err := open(ctx, db, d)
	if err != nil {
		return err
	}
	defer closeMigrate(m)
	defer stopOnDone(ctx, m)()

	logger.Info("Migrations: rolling back", zap.String("dialect", string(d)))
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	logger.Info("Migrations: rolled back", zap.String("dialect", string(d)))
	return nil
}

// open closes db itself on failure.
func open(ctx context.Context, db *sql.DB, d Dialect) (*migrate.Migrate, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect for migrations: %w", err)
	}
	m, err := newMigrate(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func stopOnDone(ctx context.Context, m *migrate.Migrate) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
}

func newMigrate(db *sql.DB, d Dialect) (*migrate.Migrate, error) {
	sub, err := Files(d)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	var driver database.Driver
	switch d {
	case Postgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	case SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("open migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func logVersion(m *migrate.Migrate, d Dialect) error {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("Migrations: up to date",
		zap.String("dialect", string(d)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Migrations: closing source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Migrations: closing database", zap.Error(dbErr))
	}
}

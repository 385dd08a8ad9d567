// Package storage owns the postgres connection and schema for the
// credentials provider. The connection string is the single required piece
// of process configuration; everything here fails at startup, never per
// request.
package storage

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to postgres and wraps the handle for bun. sql.Open does not
// dial, so Ping before serving traffic.
func Open(dbURL string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to open database")
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Migrate applies all pending migrations. Already current is not an error.
func Migrate(dbURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to create migration source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.CategoryOperation, "failed to run migrations")
	}

	return nil
}

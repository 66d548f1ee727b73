package repository

import (
	"embed"
	"errors"
	"fmt"

	"churn-predictor/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewDB opens the configured database and brings its schema up to date.
func NewDB(dbType, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	var driverName string
	switch dbType {
	case config.DatabaseSQLite:
		driverName = "sqlite"
	case config.DatabasePostgres:
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dbType == config.DatabaseSQLite {
		// one writer at a time avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	if err := migrateDB(db, dbType); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database ready", zap.String("type", dbType))
	return db, nil
}

// migrateDB runs the embedded migrations.
func migrateDB(db *sqlx.DB, dbType string) error {
	var (
		driver database.Driver
		err    error
	)
	switch dbType {
	case config.DatabaseSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("couldn't open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "churn_predictor", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}
	return nil
}

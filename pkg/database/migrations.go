package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// migrationsTable keeps migration bookkeeping next to the registry tables it
// manages instead of golang-migrate's generic default.
const migrationsTable = "registry_schema_migrations"

// RunMigrations brings the registry schema up to date from the SQL files in
// migrationsPath. It refuses to proceed on a dirty schema: the change ledger
// is append-only, so a half-applied migration is corrected by hand, never by
// blindly re-running.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to open migrations at %s: %w", migrationsPath, err)
	}
	defer closeMigrator(m, logger)

	if _, dirty, err := m.Version(); err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	} else if dirty {
		return fmt.Errorf("registry schema is dirty, refusing to migrate")
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Registry schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Registry schema migrated", zap.Uint("schema_version", version))
	return nil
}

func closeMigrator(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Failed to close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Failed to close migration database handle", zap.Error(dbErr))
	}
}

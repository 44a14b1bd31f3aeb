// Package testhelpers provides shared infrastructure for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/database"
)

// PostgresImage is the PostgreSQL image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// RegistryDB holds a shared test database with migrations applied.
// Use this for testing repositories and services against a real database.
type RegistryDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedRegistryDB     *RegistryDB
	sharedRegistryDBOnce sync.Once
	sharedRegistryDBErr  error
)

// GetRegistryDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetRegistryDB(t *testing.T) *RegistryDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRegistryDBOnce.Do(func() {
		sharedRegistryDB, sharedRegistryDBErr = setupRegistryDB()
	})

	if sharedRegistryDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedRegistryDBErr)
	}

	return sharedRegistryDB
}

func setupRegistryDB() (*RegistryDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "registry_test",
			"POSTGRES_USER":     "registry",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://registry:test_password@%s:%s/registry_test?sslmode=disable",
		host, port.Port())

	// Run migrations using database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &RegistryDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// migrationsPath resolves the migrations directory relative to this source
// file, so integration tests work from any package directory.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

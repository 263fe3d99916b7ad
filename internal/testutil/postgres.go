// Package testutil provides test helpers including container management.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/storage/postgres"
)

// Environment variables gating database integration tests.
const (
	// EnvDSN points the tests at an existing, disposable database.
	EnvDSN = "TEST_DSN"
	// EnvContainers, when set, lets tests start a throwaway container.
	EnvContainers = "TEST_CONTAINERS"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}

// NewPool returns a migrated pool for integration tests. TEST_DSN wins when
// set; otherwise a container is started when TEST_CONTAINERS is set. The test
// is skipped when neither is available.
//
// Postcondition: The power_selections table exists and is empty.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv(EnvDSN)
	var raw *pgxpool.Pool
	switch {
	case dsn != "":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			t.Fatalf("connecting to %s: %v", EnvDSN, err)
		}
		t.Cleanup(pool.Close)
		raw = pool
	case os.Getenv(EnvContainers) != "":
		pc := NewPostgresContainer(t)
		dsn, raw = pc.DSN(), pc.RawPool
	default:
		t.Skipf("%s and %s not set; skipping integration test", EnvDSN, EnvContainers)
	}

	if _, _, err := postgres.Migrate(dsn, MigrationsDir(t), 0); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	if _, err := raw.Exec(ctx, `TRUNCATE power_selections`); err != nil {
		t.Fatalf("truncating power_selections: %v", err)
	}
	return raw
}

// MigrationsDir walks up from the working directory to the module root and
// returns its migrations directory.
func MigrationsDir(t testing.TB) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root := wd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return filepath.Join(root, "migrations")
		}
		parent := filepath.Dir(root)
		if parent == root {
			t.Fatalf("could not find module root from %s", wd)
		}
		root = parent
	}
}

package records

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chronic-risk-monitor/internal/database"
	"github.com/chronic-risk-monitor/internal/domain"
)

func TestPostgresStore_Migrated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    "testpass",
		MaxConns:    4,
		MinConns:    1,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}

	runner, err := database.NewMigrationRunner(config.URL(), filepath.Join("..", "..", "migrations"), quietLogger())
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, quietLogger())
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db.Pool, quietLogger())

	all, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedRecords(), all)

	r, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.SMOKING_FORMER, r.SmokingHistory)

	_, err = store.Get(ctx, 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

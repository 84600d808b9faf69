package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/sheetsync/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// getTestPool connects to TEST_DATABASE_URL and applies the schema.
// Tests that need Postgres are skipped when it is unset.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool), "Failed to migrate test database")
	return pool
}

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err(), "Failed to connect to test redis")
	t.Cleanup(func() { client.Close() })
	return client
}

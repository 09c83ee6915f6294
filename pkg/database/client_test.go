package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient creates a database client against a real PostgreSQL.
// In CI (when CI_DATABASE_URL is set): connects to an external service container.
// In local dev: spins up a testcontainer. The pgvector image is required
// because the memory migration creates the vector extension.
func newTestClient(t *testing.T) *Client {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"pgvector/pgvector:pg16",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	} else {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
	}

	client, err := NewClient(ctx, Config{
		URL:             connStr,
		MaxConns:        5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestNewClient_RunsMigrations(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, table := range []string{"agent_actions", "memory"} {
		var exists bool
		err := client.Pool().QueryRow(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "expected table %q after migrations", table)
	}
}

func TestClient_MemoryRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Pool().Exec(ctx,
		`INSERT INTO memory (user_id, prompt, response) VALUES ($1, $2, $3)`,
		"u1", "why is the sky blue", "rayleigh scattering")
	require.NoError(t, err)

	var response string
	err = client.Pool().QueryRow(ctx,
		`SELECT response FROM memory WHERE user_id = $1 ORDER BY timestamp DESC LIMIT 1`,
		"u1").Scan(&response)
	require.NoError(t, err)
	assert.Equal(t, "rayleigh scattering", response)
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t)

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.GreaterOrEqual(t, status.MaxConns, int32(1))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("missing DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := LoadConfigFromEnv()
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/quorum")
		t.Setenv("DB_MAX_CONNS", "")
		cfg, err := LoadConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, int32(10), cfg.MaxConns)
		assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	})

	t.Run("invalid DB_MAX_CONNS", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/quorum")
		t.Setenv("DB_MAX_CONNS", "many")
		_, err := LoadConfigFromEnv()
		assert.Error(t, err)
	})
}

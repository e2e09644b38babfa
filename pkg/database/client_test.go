package database

import (
	"context"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient creates a test database client inline (avoiding import cycle with test/database)
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
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

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(dialect.Postgres, connStr)
	require.NoError(t, err)

	db := drv.DB()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	entClient := ent.NewClient(ent.Driver(drv))

	// Auto-migration for tests, in place of the embedded SQL migrations.
	err = entClient.Schema.Create(ctx)
	require.NoError(t, err)

	client := NewClientFromEnt(entClient, db)

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.DB().PingContext(ctx)
	require.NoError(t, err)

	health := CheckHealth(ctx, client.DB())
	require.Empty(t, health.Error)
	assert.True(t, health.IsHealthy)
	assert.Greater(t, health.Pool.MaxOpen, 0)
}

func TestAdvisoryLock_MutualExclusion(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	connA, err := client.DB().Conn(ctx)
	require.NoError(t, err)
	defer connA.Close()

	connB, err := client.DB().Conn(ctx)
	require.NoError(t, err)
	defer connB.Close()

	acquired, err := TryAcquireLock(ctx, connA, "doctype:bill")
	require.NoError(t, err)
	assert.True(t, acquired, "first session should acquire the lock")

	acquired, err = TryAcquireLock(ctx, connB, "doctype:bill")
	require.NoError(t, err)
	assert.False(t, acquired, "second session must not acquire a held lock")

	require.NoError(t, ReleaseLock(ctx, connA, "doctype:bill"))

	acquired, err = TryAcquireLock(ctx, connB, "doctype:bill")
	require.NoError(t, err)
	assert.True(t, acquired, "lock should be acquirable once released")
	require.NoError(t, ReleaseLock(ctx, connB, "doctype:bill"))
}

func TestAdvisoryLock_DistinctNamesDoNotCollide(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// Two sessions: a Postgres session can re-take an advisory lock it
	// already holds, so a single connection could not detect a collision.
	connA, err := client.DB().Conn(ctx)
	require.NoError(t, err)
	defer connA.Close()

	connB, err := client.DB().Conn(ctx)
	require.NoError(t, err)
	defer connB.Close()

	acquired, err := TryAcquireLock(ctx, connA, "doctype:bill")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = TryAcquireLock(ctx, connB, "doctype:receipt")
	require.NoError(t, err)
	assert.True(t, acquired, "an unrelated type name must not be blocked")

	require.NoError(t, ReleaseLock(ctx, connA, "doctype:bill"))
	require.NoError(t, ReleaseLock(ctx, connB, "doctype:receipt"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				SSLMode:      "disable",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "",
				Database:     "test",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 5,
				MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 0,
				MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 10,
				MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Package database wires the State Store (spec §4.A): a Postgres-backed
// ent.Client plus the golang-migrate bootstrap that brings a fresh database
// up to the schema ent/schema describes before the orchestrator ever
// touches it.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config is the State Store's connection and pool configuration, loaded by
// LoadConfigFromEnv and validated before NewClient ever opens a socket.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// dsn renders cfg as a libpq-style connection string for the pgx driver.
func (cfg Config) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// Client bundles the generated ent.Client with the raw *sql.DB it sits on
// top of, so callers that need connection-pool-level access (CheckHealth,
// the advisory-lock primitive) don't have to reach through ent's driver
// abstraction to get it.
type Client struct {
	*ent.Client
	db *stdsql.DB
}

// DB returns the raw connection pool backing this Client.
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// NewClientFromEnt wraps an already-constructed ent.Client, skipping the
// dial-and-migrate steps NewClient performs. test/database.NewTestClient
// uses this to point at a schema it created directly via entClient.Schema.Create
// rather than the embedded golang-migrate migrations.
func NewClientFromEnt(entClient *ent.Client, db *stdsql.DB) *Client {
	return &Client{Client: entClient, db: db}
}

// NewClient dials Postgres via pgx, applies the connection pool settings in
// cfg, runs pending migrations, and returns a Client ready for use. The
// returned error always leaves no dangling connection: every failure path
// closes what it opened before returning.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := stdsql.Open("pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// entsql.OpenDB wraps the already-pooled *sql.DB rather than letting ent
	// dial its own connection, so the pool settings above apply to every
	// query ent issues too.
	drv := entsql.OpenDB(dialect.Postgres, db)
	entClient := ent.NewClient(ent.Driver(drv))

	if err := bootstrapSchema(ctx, db, cfg.Database); err != nil {
		_ = entClient.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Client{Client: entClient, db: db}, nil
}

// bootstrapSchema applies every pending golang-migrate migration embedded
// under pkg/database/migrations. Schema changes are committed as .sql files
// alongside ent/schema edits (see migrations/ for the naming convention)
// rather than generated at runtime, so a deploy never depends on the ent
// codegen toolchain being present on the target.
func bootstrapSchema(ctx context.Context, db *stdsql.DB, databaseName string) error {
	present, err := embeddedMigrationsPresent()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !present {
		return fmt.Errorf("no embedded migration files found - binary built without pkg/database/migrations")
	}

	pgDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, databaseName, pgDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	applied, err := applyMigrations(m)
	if err != nil {
		return err
	}
	slog.Info("applied database migrations", "count", applied)

	// Close only the source driver. m.Close() would also close pgDriver,
	// which closes the shared *sql.DB passed to postgres.WithInstance —
	// that *sql.DB still belongs to the ent.Client this call is bootstrapping.
	if err := src.Close(); err != nil {
		return fmt.Errorf("close migration source: %w", err)
	}
	return nil
}

// applyMigrations runs m.Up() and reports how many versions were applied by
// diffing the reported version before and after. golang-migrate doesn't
// return a count directly, only ErrNoChange when there was nothing to do.
func applyMigrations(m *migrate.Migrate) (int, error) {
	before, _, _ := m.Version()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return 0, nil
		}
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	after, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if after >= before {
		return int(after - before), nil
	}
	return 1, nil
}

// embeddedMigrationsPresent reports whether the embedded FS contains at
// least one .sql migration file.
func embeddedMigrationsPresent() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read embedded migrations dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}

package connections

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client holds the database connection pool.
type Client struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// ConnectDB establishes a connection to the PostgreSQL database and registers
// the pgvector types on every new connection.
func ConnectDB(databaseURL string, logger *slog.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Fails until the vector extension exists; Migrate resets the pool afterwards.
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			logger.Warn("pgvector types not registered on connection", slog.Any("error", err))
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool with custom config: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("Database connection established and pgvector type registered")
	return &Client{Pool: pool, logger: logger}, nil
}

// Migrate applies the embedded goose migrations (documents table and the
// match_documents search function).
func (c *Client) Migrate(ctx context.Context) error {
	// The *sql.DB borrows connections from the pool; it is not closed so the pool stays open.
	db := stdlib.OpenDBFromPool(c.Pool)

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	c.logger.Info("Database migrations applied", "version", version)

	// Drop connections opened before the extension existed so they re-register pgvector.
	c.Pool.Reset()
	return nil
}

// Close gracefully closes the database connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// Ping verifies the connection to the database is still alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

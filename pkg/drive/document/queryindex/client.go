// Package queryindex maintains a Postgres-backed mirror of document index
// entries for query patterns the tree store's path-prefix indices cannot
// serve directly: range scans across more than one trailing property,
// case-insensitive text search, and ad-hoc filtering a contract's declared
// indices never anticipated. The tree store stays the single source of
// truth; this mirror is rebuilt from it and is never consulted for
// consensus-critical decisions.
package queryindex

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Client wraps a connection-pooled *sql.DB for the document mirror.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Config holds the connection parameters a Client is built from.
type Config struct {
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
	MaxLifetime  time.Duration
}

// NewClient opens a pooled Postgres connection and verifies it with a
// bounded ping before returning.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("queryindex: database URL cannot be empty")
	}

	client := &Client{
		logger: log.New(log.Writer(), "[queryindex] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(client)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("queryindex: open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	client.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("queryindex: ping database: %w", err)
	}

	client.logger.Printf("connected to document index mirror (max_open=%d, max_idle=%d)", maxOpen, maxIdle)
	return client, nil
}

// DB returns the underlying *sql.DB for migration tooling.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the pooled connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS document_mirror (
	contract_id     BYTEA NOT NULL,
	document_type   TEXT NOT NULL,
	document_id     BYTEA NOT NULL,
	owner_id        BYTEA NOT NULL,
	revision        BIGINT NOT NULL,
	created_at_ms   BIGINT NOT NULL,
	updated_at_ms   BIGINT NOT NULL,
	properties      JSONB NOT NULL,
	PRIMARY KEY (contract_id, document_type, document_id)
);
CREATE INDEX IF NOT EXISTS document_mirror_owner_idx
	ON document_mirror (contract_id, document_type, owner_id);
CREATE INDEX IF NOT EXISTS document_mirror_properties_idx
	ON document_mirror USING GIN (properties);
`

// EnsureSchema creates the mirror table and its indices if they do not
// already exist. Safe to call on every process start.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("queryindex: ensure schema: %w", err)
	}
	return nil
}

// Package store persists converted documents, their records and diagnostic
// trails in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/VotersList/internal/core"
)

var _ core.DocumentStore = (*Store)(nil)

var (
	ErrNotFound          = errors.New("document not found")
	ErrEmptyURL          = errors.New("empty database URL, set DATABASE_URL")
	ErrFailedToConnect   = errors.New("failed to open db connection")
	ErrFailedToParseURL  = errors.New("failed to parse db config")
	ErrFailedToMigrate   = errors.New("failed to apply migrations")
	ErrHealthcheckFailed = errors.New("healthcheck failed, connection is not available")
)

// Config holds connection settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	RetryAttempts   int
	RetryInterval   time.Duration
	MigrationsTable string
}

// Store is the Postgres-backed document store. It is safe for concurrent use.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

// DefaultBatchSize is how many records a DocumentTx buffers before copying.
const DefaultBatchSize = 500

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, batchSize: DefaultBatchSize}
}

// Connect opens a pool, retrying with linear backoff until a ping succeeds.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for i := range attempts {
		if i > 0 {
			wait := time.Duration(i) * cfg.RetryInterval
			slog.Warn("database not ready, retrying", "attempt", i+1, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			lastErr = err
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			continue
		}
		return New(pool), nil
	}

	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// SeenHash reports whether a document with this content hash was stored.
func (s *Store) SeenHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE content_hash = $1)`, hash,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("lookup content hash: %w", err)
	}
	return seen, nil
}

// BeginDocument opens a transaction and registers the document row so its
// records can be copied in as they are produced. The caller must Commit or
// Rollback the returned DocumentTx.
func (s *Store) BeginDocument(ctx context.Context, id, source, hash string) (core.DocumentTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	dt, err := startDocument(ctx, tx, id, source, hash, s.batchSize)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return dt, nil
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
// BeginDocument reports them as core.ErrDuplicateDocument.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isNotFound maps pgx.ErrNoRows.
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

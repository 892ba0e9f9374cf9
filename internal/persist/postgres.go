package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const snapshotsDDL = `CREATE TABLE IF NOT EXISTS noema_snapshots (
	id       BIGSERIAL PRIMARY KEY,
	saved_at TIMESTAMPTZ NOT NULL,
	data     JSONB NOT NULL
)`

// PostgresBackend stores snapshots in a single table, latest row wins.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresBackend connects with a pgx pool and ensures the table exists.
func NewPostgresBackend(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, snapshotsDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &PostgresBackend{pool: pool, logger: logger}, nil
}

func (p *PostgresBackend) Save(ctx context.Context, snap *Snapshot) error {
	snap.SavedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := p.pool.Exec(ctx,
		`INSERT INTO noema_snapshots (saved_at, data) VALUES ($1, $2)`,
		snap.SavedAt, data); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	p.logger.Debug("snapshot saved", zap.Int("bytes", len(data)))
	return nil
}

func (p *PostgresBackend) Load(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM noema_snapshots ORDER BY id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Close shuts down the connection pool.
func (p *PostgresBackend) Close() {
	p.pool.Close()
}

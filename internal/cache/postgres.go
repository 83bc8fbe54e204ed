package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS analysis_cache (
	key        TEXT PRIMARY KEY,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores results in the analysis_cache table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// ConnectPostgres opens a connection pool, verifies it and ensures the
// cache table exists.
func ConnectPostgres(ctx context.Context, databaseURL string, log *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create analysis_cache table: %w", err)
	}

	return &Postgres{pool: pool, logger: logger.OrNop(log)}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Get implements Cache.
func (p *Postgres) Get(ctx context.Context, key string) (*types.AnalysisResult, bool, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT result FROM analysis_cache WHERE key = $1`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Backend: "postgres", Op: "get", Cause: err}
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, &StoreError{Backend: "postgres", Op: "decode", Cause: err}
	}
	return &result, true, nil
}

// Put implements Cache. An existing entry is replaced as a whole.
func (p *Postgres) Put(ctx context.Context, key string, result *types.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return &StoreError{Backend: "postgres", Op: "encode", Cause: err}
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO analysis_cache (key, result)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET result = $2, created_at = NOW()`,
		key, data,
	)
	if err != nil {
		return &StoreError{Backend: "postgres", Op: "upsert", Cause: err}
	}

	p.logger.Debug("analysis cached", zap.String("key", key))
	return nil
}

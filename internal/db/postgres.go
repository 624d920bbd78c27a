package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pool tuning. The workload is read-heavy and every query — including
// the ST_DWithin scan — holds a connection only for a single round
// trip, so a small pool suffices. Connections are recycled on a short
// cycle so none stays pinned to a PostGIS backend for long.
const (
	poolMaxConns        = 10
	poolMinConns        = 2
	poolConnMaxLifetime = 30 * time.Minute
	poolConnMaxIdleTime = 5 * time.Minute
	poolHealthInterval  = 30 * time.Second

	connectPingTimeout = 5 * time.Second
)

// DB wraps the pgx pool together with the logger used for lifecycle
// events.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a connection pool from a Postgres URL (the DATABASE_URL
// convention) and verifies it with a bounded ping, so a wrong URL
// fails fast at startup instead of on the first request.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnLifetime = poolConnMaxLifetime
	cfg.MaxConnIdleTime = poolConnMaxIdleTime
	cfg.HealthCheckPeriod = poolHealthInterval

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return &DB{pool: pool, logger: logger}, nil
}

// Close drains the pool. Safe to call once during shutdown.
func (db *DB) Close() {
	db.logger.Info("closing postgres pool")
	db.pool.Close()
}

// Pool exposes the underlying pgx pool for the store constructors.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health pings the database; the readiness endpoint reports its error.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

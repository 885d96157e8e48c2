package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "backup-desk"

// ErrProfilesTableMissing is returned by NewPool when the database does not
// carry the profiles table the app writes to.
var ErrProfilesTableMissing = errors.New("profiles table not found")

// NewPool opens a small pool for the single local user and checks that the
// profiles table is reachable before the app starts using it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := checkSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func checkSchema(ctx context.Context, pool *pgxpool.Pool) error {
	var found bool
	err := pool.QueryRow(ctx, `SELECT to_regclass('public.profiles') IS NOT NULL`).Scan(&found)
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	if !found {
		return ErrProfilesTableMissing
	}
	return nil
}

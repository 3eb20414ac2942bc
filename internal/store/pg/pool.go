package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailevents/internal/config"
)

// NewPool opens a pgx pool sized for the event workload. Duration settings
// use time.ParseDuration syntax.
func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		pcfg.MinConns = cfg.MinConns
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"DB_POOL_MAX_CONN_LIFETIME", cfg.MaxConnLifetime, &pcfg.MaxConnLifetime},
		{"DB_POOL_MAX_CONN_IDLE_TIME", cfg.MaxConnIdleTime, &pcfg.MaxConnIdleTime},
		{"DB_POOL_HEALTH_CHECK_PERIOD", cfg.HealthCheckPeriod, &pcfg.HealthCheckPeriod},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return pgxpool.NewWithConfig(ctx, pcfg)
}

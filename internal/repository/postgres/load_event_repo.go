package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/soc-dashboard/internal/audit"
)

const loadEventsTable = "load_events"

var loadEventColumns = []string{
	"id", "load_id", "trigger", "resource", "origin", "source",
	"bytes", "records", "fingerprint", "error", "duration_ms", "timestamp",
}

const createLoadEvents = `
CREATE TABLE IF NOT EXISTS load_events (
	id          TEXT PRIMARY KEY,
	load_id     TEXT        NOT NULL,
	trigger     TEXT        NOT NULL,
	resource    TEXT        NOT NULL,
	origin      TEXT        NOT NULL,
	source      TEXT        NOT NULL,
	bytes       INTEGER     NOT NULL,
	records     INTEGER     NOT NULL,
	fingerprint TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	duration_ms BIGINT      NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS load_events_load_id_idx ON load_events (load_id);`

// LoadEventRepo — хранилище журнала загрузок (audit.StorageInterface).
type LoadEventRepo struct {
	pool *pgxpool.Pool
}

// NewLoadEventRepo создает пул соединений. Доступность БД проверяется через Ping.
func NewLoadEventRepo(ctx context.Context, connString string, maxConns, minConns int32) (*LoadEventRepo, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return &LoadEventRepo{pool: pool}, nil
}

func (r *LoadEventRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *LoadEventRepo) Close() {
	r.pool.Close()
}

// EnsureSchema создает таблицу журнала, если ее еще нет.
func (r *LoadEventRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createLoadEvents); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// WriteBatch пишет пачку событий одним COPY.
func (r *LoadEventRepo) WriteBatch(ctx context.Context, events []audit.LoadEvent) error {
	if len(events) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{loadEventsTable},
		loadEventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return loadEventRow(events[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: copy load events: %w", err)
	}
	return nil
}

// loadEventRow — порядок значений совпадает с loadEventColumns.
func loadEventRow(e audit.LoadEvent) []any {
	return []any{
		e.ID, e.LoadID, e.Trigger, e.Resource, e.Origin, e.Source,
		int32(e.Bytes), int32(e.Records), e.Fingerprint, e.Error, e.DurationMs, e.Timestamp,
	}
}

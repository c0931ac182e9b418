package cdr

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig controls database/sql pool behavior.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	out := c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 4
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = 2
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	return out
}

const schema = `
CREATE TABLE IF NOT EXISTS call_records (
	id           UUID PRIMARY KEY,
	call_id      BIGINT NOT NULL,
	kind         TEXT NOT NULL,
	direction    TEXT NOT NULL,
	source       TEXT NOT NULL,
	target       TEXT NOT NULL,
	digits       TEXT NOT NULL DEFAULT '',
	answered     BOOLEAN NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	connected_at TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ NOT NULL,
	reason       INTEGER NOT NULL,
	reason_b3    INTEGER NOT NULL
)`

// PostgresStore keeps records in the call_records table. The dsn is opened
// through the pgx database/sql driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, pings and creates the table when missing. The dsn
// must not be logged.
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig) (*PostgresStore, error) {
	pool = pool.withDefaults()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cdr db ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cdr schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	if err := r.normalize(); err != nil {
		return err
	}
	const q = `
INSERT INTO call_records
	(id, call_id, kind, direction, source, target, digits, answered,
	 started_at, connected_at, ended_at, reason, reason_b3)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	var connected sql.NullTime
	if !r.ConnectedAt.IsZero() {
		connected = sql.NullTime{Time: r.ConnectedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, q,
		r.ID, int64(r.CallID), r.Kind, r.Direction, r.Source, r.Target, r.Digits, r.Answered,
		r.StartedAt, connected, r.EndedAt, int32(r.Reason), int32(r.ReasonB3))
	return err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, call_id, kind, direction, source, target, digits, answered,
       started_at, connected_at, ended_at, reason, reason_b3
FROM call_records
ORDER BY ended_at DESC
LIMIT $1
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                Record
			callID           int64
			reason, reasonB3 int32
			connected        sql.NullTime
		)
		if err := rows.Scan(
			&r.ID,
			&callID,
			&r.Kind,
			&r.Direction,
			&r.Source,
			&r.Target,
			&r.Digits,
			&r.Answered,
			&r.StartedAt,
			&connected,
			&r.EndedAt,
			&reason,
			&reasonB3,
		); err != nil {
			return nil, err
		}
		r.CallID = uint32(callID)
		r.Reason = uint16(reason)
		r.ReasonB3 = uint16(reasonB3)
		if connected.Valid {
			r.ConnectedAt = connected.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Package store wraps the relational store (a table land(ip, nick, created)
// assumed present, not created by this process) behind the queries the
// claim worker and the score/recent regenerators need. Grounded on
// AddClaim/GetClaims in original_source/net/turfwar/turfwar.c and realized
// with github.com/mattn/go-sqlite3, the pack's cgo sqlite driver whose
// PRAGMA/ON CONFLICT semantics mirror the original's.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// UpsertMaxAge is the age in seconds past which a reclaim by the same nick
// refreshes the row's created time, matching the ON CONFLICT clause's
// "?3 - created > 3600" guard. A claim by a different nick always updates.
const UpsertMaxAge = 3600

const upsertClaimSQL = `
INSERT INTO land (ip, nick, created)
VALUES (?1, ?2, ?3)
ON CONFLICT (ip) DO UPDATE SET nick = ?2, created = ?3
 WHERE nick != ?2 OR created IS NULL OR ?3 - created > ` + "3600"

const recentQuerySQL = `SELECT ip, nick, created FROM land WHERE created IS NOT NULL ORDER BY created DESC LIMIT 50`

const scoreQueryAllTimeSQL = `SELECT nick, (ip >> 24) & 255, COUNT(*) FROM land GROUP BY nick, (ip >> 24) & 255`
const scoreQueryWindowSQL = `SELECT nick, (ip >> 24) & 255, COUNT(*) FROM land WHERE created >= ?1 GROUP BY nick, (ip >> 24) & 255`

// Claim mirrors queue.Claim without importing internal/queue, keeping the
// store package free of the concurrency package's dependency graph.
type Claim struct {
	IP      uint32
	Nick    string
	Created int64
}

// ScoreRow is one (nick, /24 octet, count) aggregate row.
type ScoreRow struct {
	Nick  string
	Octet int
	Count int64
}

// RecentRow is one recently-claimed land row.
type RecentRow struct {
	IP      uint32
	Nick    string
	Created int64
}

// DB wraps a *sql.DB opened in WAL mode with the claim upsert prepared.
type DB struct {
	sql    *sql.DB
	upsert *sql.Stmt
}

// Open opens path with WAL journaling and NORMAL synchronous mode,
// retrying PRAGMA journal_mode=WAL up to 7 times with exponential backoff
// starting at 1ms (doubling each attempt) whenever it returns an error
// (SQLITE_BUSY or otherwise), matching the original claim worker's startup
// sequence.
func Open(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1) // single writer, matching the claim worker's single store handle

	backoff := time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 7; attempt++ {
		_, lastErr = sqlDB.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
		if lastErr == nil {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			sqlDB.Close()
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	if lastErr != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: enable WAL after retries: %w", lastErr)
	}

	if _, err := sqlDB.ExecContext(ctx, `PRAGMA synchronous=NORMAL`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: set synchronous=NORMAL: %w", err)
	}

	upsert, err := sqlDB.PrepareContext(ctx, upsertClaimSQL)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: prepare upsert: %w", err)
	}

	return &DB{sql: sqlDB, upsert: upsert}, nil
}

// Close releases the prepared statement and the underlying connection.
func (d *DB) Close() error {
	if d.upsert != nil {
		_ = d.upsert.Close()
	}
	return d.sql.Close()
}

// CommitBatch writes claims in a single transaction via the upsert
// statement, matching the claim worker's one-transaction-per-batch design.
// Any upsert failure rolls back the whole batch and is returned to the
// caller; the handle itself stays open.
func (d *DB) CommitBatch(ctx context.Context, claims []Claim) error {
	if len(claims) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	stmt := tx.StmtContext(ctx, d.upsert)
	for _, c := range claims {
		if _, err := stmt.ExecContext(ctx, int64(c.IP), c.Nick, c.Created); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: upsert ip=%d: %w", c.IP, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Score runs the aggregate query for windowSeconds (<=0 means all-time) and
// returns one row per (nick, /24 octet).
func (d *DB) Score(ctx context.Context, windowSeconds int64, since int64) ([]ScoreRow, error) {
	var rows *sql.Rows
	var err error
	if windowSeconds <= 0 {
		rows, err = d.sql.QueryContext(ctx, scoreQueryAllTimeSQL)
	} else {
		rows, err = d.sql.QueryContext(ctx, scoreQueryWindowSQL, since-windowSeconds)
	}
	if err != nil {
		return nil, fmt.Errorf("store: score query: %w", err)
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var r ScoreRow
		if err := rows.Scan(&r.Nick, &r.Octet, &r.Count); err != nil {
			return nil, fmt.Errorf("store: score scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recent returns the 50 most recently claimed rows, newest first.
func (d *DB) Recent(ctx context.Context) ([]RecentRow, error) {
	rows, err := d.sql.QueryContext(ctx, recentQuerySQL)
	if err != nil {
		return nil, fmt.Errorf("store: recent query: %w", err)
	}
	defer rows.Close()

	var out []RecentRow
	for rows.Next() {
		var ip int64
		var r RecentRow
		if err := rows.Scan(&ip, &r.Nick, &r.Created); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.IP = uint32(ip)
		out = append(out, r)
	}
	return out, rows.Err()
}

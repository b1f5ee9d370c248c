// Package playlog keeps a proof-of-play journal in a local SQLite
// database. Every resolved showing becomes one row, so a venue can
// prove what actually ran on a screen and when, even for days the
// player spent offline.
package playlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one journal row.
type Entry struct {
	Asset     string // asset display name
	Kind      string // image | video | web
	StartedAt int64  // unix milliseconds when the asset went on screen
	Duration  int    // seconds the asset actually spent on screen
	Result    string // shown | skipped | failed
	Reason    string // failure detail, empty otherwise
}

// Journal is an append-mostly play log backed by SQLite.
type Journal struct {
	db     *sql.DB
	device string
}

// Open opens (and if needed creates) the journal database at path.
// Rows are tagged with the given device id.
func Open(path, device string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open playlog database: %w", err)
	}
	// SQLite allows one writer; a second connection would only ever
	// see SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS plays (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        device TEXT NOT NULL,
        asset TEXT NOT NULL,
        kind TEXT NOT NULL,
        started_at INTEGER NOT NULL,
        duration INTEGER NOT NULL,
        result TEXT NOT NULL,
        reason TEXT NOT NULL DEFAULT ''
    )`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create plays table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS plays_started_at ON plays (started_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create plays index: %w", err)
	}

	return &Journal{db: db, device: device}, nil
}

// Record appends one entry to the journal.
func (j *Journal) Record(e Entry) error {
	_, err := j.db.Exec(
		`INSERT INTO plays (device, asset, kind, started_at, duration, result, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.device, e.Asset, e.Kind, e.StartedAt, e.Duration, e.Result, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first. limit <= 0 returns
// an empty slice.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	rows, err := j.db.Query(`
        SELECT asset, kind, started_at, duration, result, reason
        FROM plays
        ORDER BY started_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query plays: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Asset, &e.Kind, &e.StartedAt, &e.Duration, &e.Result, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan play row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play rows: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the retention window and returns
// how many rows went. days <= 0 keeps everything.
func (j *Journal) Prune(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	res, err := j.db.Exec(`DELETE FROM plays WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune plays: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune plays: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Package runlock serializes jobs across processes sharing one host with a SQLite lease table.
package runlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrHeld is returned by Acquire when another owner holds an unexpired lease.
var ErrHeld = errors.New("run lock is held")

// Lease is a held lock.
type Lease struct {
	Name      string
	Owner     string
	ExpiresAt time.Time
}

// Store holds leases in a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the lease database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("runlock: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("runlock: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Acquire takes the named lease for ttl. Expired leases are reclaimed.
func (s *Store) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (*Lease, error) {
	now := s.now().UTC()
	expires := now.Add(ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_locks WHERE name = ? AND expires_at <= ?`,
		name, now.UnixNano()); err != nil {
		return nil, fmt.Errorf("runlock: reclaim %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, owner, now.UnixNano(), expires.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("runlock: acquire %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var holder string
		var until int64
		if err := tx.QueryRowContext(ctx,
			`SELECT owner, expires_at FROM run_locks WHERE name = ?`, name).Scan(&holder, &until); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrHeld, name)
		}
		return nil, fmt.Errorf("%w: %s by %s until %s", ErrHeld, name, holder,
			time.Unix(0, until).UTC().Format(time.RFC3339))
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Lease{Name: name, Owner: owner, ExpiresAt: expires}, nil
}

// Release drops the lease if it is still held by its owner.
func (s *Store) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM run_locks WHERE name = ? AND owner = ?`, l.Name, l.Owner)
	if err != nil {
		return fmt.Errorf("runlock: release %s: %w", l.Name, err)
	}
	return nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS run_locks (
			name TEXT NOT NULL PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

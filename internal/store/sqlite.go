package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the durable Store implementation shipped with the service. Each
// blob row carries a monotonically increasing version; CompareAndSwap is a
// conditional UPDATE so concurrent writers serialize at the row level.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the blob database in dir.
func NewSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "blobs.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open blob db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	path       TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate blob db: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *SQLite) Read(ctx context.Context, path string) ([]byte, int64, error) {
	var data []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM blobs WHERE path = ?`, path,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotExist
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, version, nil
}

// CompareAndSwap implements Store.
func (s *SQLite) CompareAndSwap(ctx context.Context, path string, expected int64, data []byte) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if expected == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO blobs (path, version, data, updated_at) VALUES (?, 1, ?, ?)`,
			path, data, now,
		)
		if err != nil {
			// A unique-constraint failure means another writer created the
			// blob first.
			if exists, checkErr := s.exists(ctx, path); checkErr == nil && exists {
				return 0, ErrConflict
			}
			return 0, fmt.Errorf("create blob %s: %w", path, err)
		}
		return 1, nil
	}

	next := expected + 1
	res, err := s.db.ExecContext(ctx,
		`UPDATE blobs SET version = ?, data = ?, updated_at = ? WHERE path = ? AND version = ?`,
		next, data, now, path, expected,
	)
	if err != nil {
		return 0, fmt.Errorf("update blob %s: %w", path, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update blob %s: %w", path, err)
	}
	if affected == 0 {
		return 0, ErrConflict
	}
	return next, nil
}

func (s *SQLite) exists(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

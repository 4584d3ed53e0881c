package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("entry not found")

// StorageError wraps any failure of the underlying engine. Callers treat
// it as non-fatal wherever the store is only a cache of a remote resource.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
    id TEXT PRIMARY KEY,
    base64 TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_images_timestamp ON images(timestamp);
`

// Entry is one stored record: a key, an image payload as a base64 data
// URI, and the time it was written.
type Entry struct {
	ID        string
	Base64    string
	Timestamp time.Time
}

// Store is an asynchronous key-value image store backed by sqlite. The
// database handle opens lazily on first use; concurrent first callers all
// await the same open.
type Store struct {
	path string
	now  func() time.Time

	openOnce sync.Once
	db       *sql.DB
	openErr  error
}

func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath returns the store location inside the platform data dir.
func DefaultPath() (string, error) {
	if testDir := os.Getenv("NANOTHUMB_DATA_DIR"); testDir != "" {
		return filepath.Join(testDir, "images.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".nanothumb", "images.db"), nil
}

func (s *Store) open() (*sql.DB, error) {
	s.openOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			s.openErr = fmt.Errorf("failed to create data directory: %w", err)
			return
		}

		db, err := sql.Open("sqlite", s.path)
		if err != nil {
			s.openErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		if _, err := db.Exec(schema); err != nil {
			db.Close()
			s.openErr = fmt.Errorf("failed to create schema: %w", err)
			return
		}

		s.db = db
	})
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.db, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put writes an image payload under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, base64 string) error {
	db, err := s.open()
	if err != nil {
		return storageErr("put", key, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO images (id, base64, timestamp) VALUES (?, ?, ?)`,
		key, base64, s.now().UnixMilli())
	if err != nil {
		return storageErr("put", key, err)
	}
	return nil
}

// Get returns the payload stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", storageErr("get", key, err)
	}
	var base64 string
	err = db.QueryRowContext(ctx, `SELECT base64 FROM images WHERE id = ?`, key).Scan(&base64)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storageErr("get", key, ErrNotFound)
	}
	if err != nil {
		return "", storageErr("get", key, err)
	}
	return base64, nil
}

// Has reports whether key exists without loading its payload.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	db, err := s.open()
	if err != nil {
		return false, storageErr("has", key, err)
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM images WHERE id = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("has", key, err)
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	db, err := s.open()
	if err != nil {
		return storageErr("delete", key, err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, key); err != nil {
		return storageErr("delete", key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return storageErr("clear", "", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM images`); err != nil {
		return storageErr("clear", "", err)
	}
	return nil
}

// ListAll returns entries sorted newest first, optionally restricted to a
// key prefix.
func (s *Store) ListAll(ctx context.Context, prefix string) ([]Entry, error) {
	db, err := s.open()
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}

	query := `SELECT id, base64, timestamp FROM images ORDER BY timestamp DESC`
	args := []interface{}{}
	if prefix != "" {
		query = `SELECT id, base64, timestamp FROM images WHERE id LIKE ? ESCAPE '\' ORDER BY timestamp DESC`
		args = append(args, escapeLike(prefix)+"%")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Base64, &ts); err != nil {
			return nil, storageErr("list", prefix, err)
		}
		e.Timestamp = time.UnixMilli(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", prefix, err)
	}
	return entries, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

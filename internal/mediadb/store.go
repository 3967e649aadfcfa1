package mediadb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Record is the persisted state for one source file.
type Record struct {
	Path           string
	MediaFormat    string
	StreamSelector string
	CachePath      string
}

// Store manages media metadata persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the metadata database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the record for a source path, or nil when none exists.
func (s *Store) Get(ctx context.Context, sourcePath string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, media_format, stream_selector, COALESCE(cache_path, '')
         FROM media WHERE path = ?`, sourcePath)

	var rec Record
	if err := row.Scan(&rec.Path, &rec.MediaFormat, &rec.StreamSelector, &rec.CachePath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query media record: %w", err)
	}
	return &rec, nil
}

// UpsertFormat records the probed audio format and stream selector for a
// source path, preserving any existing cache path.
func (s *Store) UpsertFormat(ctx context.Context, sourcePath, format, streamSelector string) error {
	if sourcePath == "" {
		return errors.New("mediadb: source path required")
	}
	if format == "" {
		return errors.New("mediadb: media format required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (path, media_format, stream_selector) VALUES (?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET media_format = excluded.media_format,
                                         stream_selector = excluded.stream_selector`,
		sourcePath, format, streamSelector)
	if err != nil {
		return fmt.Errorf("upsert media format: %w", err)
	}
	return nil
}

// SetCachePath records the cache file produced for a source path. The row
// must already exist from a prior probe.
func (s *Store) SetCachePath(ctx context.Context, sourcePath, cachePath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media SET cache_path = ? WHERE path = ?`, cachePath, sourcePath)
	if err != nil {
		return fmt.Errorf("set cache path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cache path rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mediadb: no record for %q", sourcePath)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens a ledger. Use ":memory:" for an in-memory database,
// or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrInitializeSchemaFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		build_id TEXT NOT NULL,
		grp TEXT NOT NULL,
		hash TEXT NOT NULL,
		filename TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		sources TEXT NOT NULL,
		gzipped INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_build_id ON artifacts(build_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	CREATE INDEX IF NOT EXISTS idx_artifacts_hash ON artifacts(hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts e, assigning an ID when empty.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return wrap(ErrRecordFailed, fmt.Errorf("marshal sources: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, build_id, grp, hash, filename, url, path, sources, gzipped, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BuildID, e.Group, e.Hash, e.Filename, e.URL, e.Path, string(sources), e.Gzipped, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return wrap(ErrRecordFailed, err)
	}
	return nil
}

const selectColumns = "SELECT id, build_id, grp, hash, filename, url, path, sources, gzipped, created_at FROM artifacts"

// ByBuild retrieves all entries for a specific build.
func (s *SQLiteStore) ByBuild(ctx context.Context, buildID string) ([]Entry, error) {
	return s.query(ctx, selectColumns+" WHERE build_id = ? ORDER BY seq", buildID)
}

// Recent retrieves the newest entries.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, selectColumns+" ORDER BY seq DESC LIMIT ?", limit)
}

// Range retrieves entries within a time range.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]Entry, error) {
	return s.query(ctx, selectColumns+" WHERE created_at >= ? AND created_at <= ? ORDER BY seq",
		start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			sources   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Group, &e.Hash, &e.Filename, &e.URL, &e.Path, &sources, &e.Gzipped, &createdAt); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("scan entry: %w", err))
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("unmarshal sources: %w", err))
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, fmt.Errorf("iterate rows: %w", err))
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

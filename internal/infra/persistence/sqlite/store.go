// Package sqlite provides the default durable store. Every transaction takes
// SQLite's write lock with BEGIN IMMEDIATE, reloads the case, evidence and
// custody snapshot, and writes it back before the in-memory state advances.
// Several handles, in one process or many, may share a database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "forensicvault.db"

// busyTimeoutMS bounds how long a writer waits for another handle's lock.
const busyTimeoutMS = 10000

const (
	schema = `CREATE TABLE IF NOT EXISTS vault_state (
		bucket     TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	selectBuckets = `SELECT bucket, payload FROM vault_state`
	upsertBucket  = `INSERT INTO vault_state(bucket, payload, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// Store is a memory.Store whose commits are written through to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates the
// in-memory state from it.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	snapshot, err := readSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readSnapshot(ctx context.Context, q querier) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	rows, err := q.QueryContext(ctx, selectBuckets)
	if err != nil {
		return snapshot, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snapshot, fmt.Errorf("scan state: %w", err)
		}
		if err := memory.DecodeBucket(&snapshot, bucket, payload); err != nil {
			return snapshot, err
		}
	}
	if err := rows.Err(); err != nil {
		return snapshot, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

// RunInTransaction runs fn against the committed state under the write
// lock and stores the result before returning.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	return s.RunDurable(ctx, fn, s.begin)
}

// View reloads the committed state before running fn.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := s.Refresh(ctx, s.load); err != nil {
		return err
	}
	return s.Store.View(ctx, fn)
}

func (s *Store) load(ctx context.Context) (memory.Snapshot, error) {
	return readSnapshot(ctx, s.db)
}

// journal pins one connection holding an IMMEDIATE transaction.
type journal struct {
	conn *sql.Conn
	done bool
}

func (s *Store) begin(ctx context.Context) (memory.Journal, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &journal{conn: conn}, nil
}

func (j *journal) Load(ctx context.Context) (memory.Snapshot, error) {
	return readSnapshot(ctx, j.conn)
}

func (j *journal) Commit(ctx context.Context, snapshot memory.Snapshot) error {
	encoded, err := memory.EncodeBuckets(snapshot)
	if err != nil {
		return err
	}
	for _, bucket := range memory.Buckets {
		if _, err := j.conn.ExecContext(ctx, upsertBucket, bucket, encoded[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if _, err := j.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	j.done = true
	return j.conn.Close()
}

func (j *journal) Rollback() error {
	if j.done {
		return nil
	}
	j.done = true
	_, err := j.conn.ExecContext(context.Background(), "ROLLBACK")
	if closeErr := j.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Package postgres provides a Postgres-backed store. It shares the snapshot
// layout of the SQLite store, storing each bucket as JSONB. Every
// transaction takes a transaction-scoped advisory lock, re-reads the
// snapshot under it and writes the result in the same database transaction,
// which serialises writers across processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/forensicvault?sslmode=disable"

	// advisoryLockKey spells "forensic" in ASCII.
	advisoryLockKey int64 = 0x666f72656e736963
)

const (
	schema = `CREATE TABLE IF NOT EXISTS vault_state (
		bucket     TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	selectBuckets = `SELECT bucket, payload FROM vault_state`
	lockWriters   = `SELECT pg_advisory_xact_lock($1)`
	upsertBucket  = `INSERT INTO vault_state(bucket, payload, updated_at) VALUES($1, $2, now())
		ON CONFLICT(bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store whose commits are written through to Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore connects to dsn (or a local default), ensures the state table and
// hydrates memory from it.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", describe(err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure state table: %w", describe(err))
	}
	snapshot, err := readSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readSnapshot(ctx context.Context, q querier) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	rows, err := q.QueryContext(ctx, selectBuckets)
	if err != nil {
		return snapshot, fmt.Errorf("select state: %w", describe(err))
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
		return snapshot, fmt.Errorf("iterate state: %w", describe(err))
	}
	return snapshot, nil
}

// RunInTransaction runs fn against the committed state under the advisory
// lock and stores the result before returning.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.RunDurable(ctx, fn, s.begin)
}

// View reloads the committed state before running fn.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := s.Refresh(ctx, func(ctx context.Context) (memory.Snapshot, error) {
		return readSnapshot(ctx, s.db)
	}); err != nil {
		return err
	}
	return s.Store.View(ctx, fn)
}

type journal struct {
	tx *sql.Tx
}

func (s *Store) begin(ctx context.Context) (memory.Journal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", describe(err))
	}
	if _, err := tx.ExecContext(ctx, lockWriters, advisoryLockKey); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("lock writers: %w", describe(err))
	}
	return &journal{tx: tx}, nil
}

func (j *journal) Load(ctx context.Context) (memory.Snapshot, error) {
	return readSnapshot(ctx, j.tx)
}

func (j *journal) Commit(ctx context.Context, snapshot memory.Snapshot) error {
	encoded, err := memory.EncodeBuckets(snapshot)
	if err != nil {
		return err
	}
	for _, bucket := range memory.Buckets {
		if _, err := j.tx.ExecContext(ctx, upsertBucket, bucket, encoded[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, describe(err))
		}
	}
	if err := j.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", describe(err))
	}
	return nil
}

func (j *journal) Rollback() error {
	err := j.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// describe adds the SQLSTATE of server errors to the message.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w (sqlstate %s)", err, pgErr.Code)
	}
	return err
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

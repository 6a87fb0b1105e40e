// Package badger provides an embedded key-value durable store. Each snapshot
// bucket lives under its own key. A transaction reloads the buckets and
// writes them back inside one badger update transaction, whose conflict
// detection rejects the commit if the keys changed after they were read.
// badger locks its directory, so a database has a single Store at a time.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"

	badgerdb "github.com/dgraph-io/badger/v4"
)

var _ domain.PersistentStore = (*Store)(nil)

const keyPrefix = "state/"

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

// Store is a memory.Store whose commits are written through to BadgerDB.
type Store struct {
	*memory.Store
	db *badgerdb.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewStore opens the database described by cfg and hydrates memory from it.
func NewStore(cfg Config, engine *domain.RulesEngine) (*Store, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	var snapshot memory.Snapshot
	if err := db.View(func(txn *badgerdb.Txn) error {
		var err error
		snapshot, err = readSnapshot(txn)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

func readSnapshot(txn *badgerdb.Txn) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	for _, bucket := range memory.Buckets {
		item, err := txn.Get([]byte(keyPrefix + bucket))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return snapshot, fmt.Errorf("get %s: %w", bucket, err)
		}
		payload, err := item.ValueCopy(nil)
		if err != nil {
			return snapshot, fmt.Errorf("read %s: %w", bucket, err)
		}
		if err := memory.DecodeBucket(&snapshot, bucket, payload); err != nil {
			return snapshot, err
		}
	}
	return snapshot, nil
}

// RunInTransaction runs fn against the state read in a badger update
// transaction and commits the result in that same transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.RunDurable(ctx, fn, s.begin)
}

type journal struct {
	txn *badgerdb.Txn
}

func (s *Store) begin(context.Context) (memory.Journal, error) {
	if s.db.IsClosed() {
		return nil, badgerdb.ErrDBClosed
	}
	return &journal{txn: s.db.NewTransaction(true)}, nil
}

func (j *journal) Load(context.Context) (memory.Snapshot, error) {
	return readSnapshot(j.txn)
}

func (j *journal) Commit(_ context.Context, snapshot memory.Snapshot) error {
	encoded, err := memory.EncodeBuckets(snapshot)
	if err != nil {
		return err
	}
	for _, bucket := range memory.Buckets {
		if err := j.txn.Set([]byte(keyPrefix+bucket), encoded[bucket]); err != nil {
			return fmt.Errorf("set %s: %w", bucket, err)
		}
	}
	return j.txn.Commit()
}

func (j *journal) Rollback() error {
	j.txn.Discard()
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests.
func (s *Store) DB() *badgerdb.DB { return s.db }

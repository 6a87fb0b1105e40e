package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"

	badgerdb "github.com/dgraph-io/badger/v4"
)

func TestBadgerStorePersistAndReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	store, err := NewStore(Config{Path: dir}, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var evidenceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c, err := tx.CreateCase(domain.Case{CaseNumber: "25-0002", Name: "Badger"})
		if err != nil {
			return err
		}
		e, err := tx.CreateEvidence(domain.Evidence{EvidenceNumber: "25-0002-001", CaseID: &c.ID, DeviceType: domain.DeviceDrone})
		if err != nil {
			return err
		}
		evidenceID = e.ID
		_, err = tx.AppendTransfer(domain.CustodyTransfer{EvidenceID: e.ID, ToDepartment: "LAB", TransferredAt: time.Now()})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(Config{Path: dir}, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListCases()); got != 1 {
		t.Fatalf("expected 1 case, got %d", got)
	}
	rows := reloaded.ListTransfers(evidenceID)
	if len(rows) != 1 || rows[0].ToDepartment != "LAB" {
		t.Fatalf("unexpected ledger: %+v", rows)
	}
	// Sequence continues from the persisted ledger.
	if _, err := reloaded.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AppendTransfer(domain.CustodyTransfer{EvidenceID: evidenceID, FromDepartment: "LAB", ToDepartment: "DF"})
		return err
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rows := reloaded.ListTransfers(evidenceID); rows[len(rows)-1].Sequence != 2 {
		t.Fatalf("expected sequence 2, got %+v", rows)
	}
}

func TestBadgerStoreInMemory(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := NewStore(Config{InMemory: true, Logger: logger}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCase(domain.Case{CaseNumber: "25-0001", Name: "mem"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err = store.DB().View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + memory.BucketCases))
		return err
	})
	if err != nil {
		t.Fatalf("cases bucket not written: %v", err)
	}
}

func TestBadgerStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(Config{}, nil); err == nil || !strings.Contains(err.Error(), "path") {
		t.Fatalf("expected path error, got %v", err)
	}
}

func TestBadgerStoreRejectsCorruptBucket(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(Config{Path: dir}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.DB().Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefix+memory.BucketEvidence), []byte("{nope"))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(Config{Path: dir}, nil); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestBadgerStoreWriteFailureKeepsPreviousState(t *testing.T) {
	store, err := NewStore(Config{InMemory: true}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = store.DB().Close()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCase(domain.Case{CaseNumber: "25-0001", Name: "Lost"})
		return err
	})
	if !errors.Is(err, badgerdb.ErrDBClosed) {
		t.Fatalf("expected closed database error, got %v", err)
	}
	if cases := store.ListCases(); len(cases) != 0 {
		t.Fatalf("failed write must not become visible, got %+v", cases)
	}
}

func TestBadgerStoreReloadsBucketsWrittenOutsideTheStore(t *testing.T) {
	store, err := NewStore(Config{InMemory: true}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	external := map[string]domain.Case{"c1": {Base: domain.Base{ID: "c1"}, CaseNumber: "25-0001", Name: "External"}}
	payload, err := json.Marshal(external)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.DB().Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefix+memory.BucketCases), payload)
	}); err != nil {
		t.Fatalf("external write: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCase(domain.Case{CaseNumber: "25-0001", Name: "Clash"})
		return err
	})
	var conflict domain.IdentifierConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected identifier conflict with externally written case, got %v", err)
	}
	if _, ok := store.GetCase("c1"); !ok {
		t.Fatalf("expected externally written case loaded")
	}
}

func TestBadgerStoreDirectoryHasSingleOwner(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(Config{Path: dir}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if second, err := NewStore(Config{Path: dir}, nil); err == nil {
		_ = second.Close()
		t.Fatalf("expected the directory lock to reject a second store")
	}
}

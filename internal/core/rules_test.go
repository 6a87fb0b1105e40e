package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"
)

func blockedBy(t *testing.T, err error, rule string) {
	t.Helper()
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && v.Severity == domain.SeverityBlock {
			return
		}
	}
	t.Fatalf("expected %s to block, got %+v", rule, violation.Result.Violations)
}

func TestIdentifierPresenceRuleBlocksMissingNumbers(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCase(domain.Case{Name: "no number"})
		return err
	})
	blockedBy(t, err, identifierPresenceRuleName)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateEvidence(domain.Evidence{ItemName: "no number"})
		return err
	})
	blockedBy(t, err, identifierPresenceRuleName)
	if len(store.ListEvidence()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestCustodyConsistencyRuleBlocksDirectDepartmentWrites(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateEvidence(domain.Evidence{EvidenceNumber: "25-UNASSIGNED-001", CurrentDepartment: "LAB"})
		return err
	})
	blockedBy(t, err, custodyConsistencyRuleName)

	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		e, err := tx.CreateEvidence(domain.Evidence{EvidenceNumber: "25-UNASSIGNED-001"})
		id = e.ID
		return err
	}); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AppendTransfer(domain.CustodyTransfer{EvidenceID: id, ToDepartment: "LAB"})
		return err
	})
	blockedBy(t, err, custodyConsistencyRuleName)
}

func TestFingerprintImmutabilityRuleBlocksDigestChanges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	e := mustCreateEvidence(t, svc, domain.Evidence{})
	if _, _, err := svc.AttachContent(ctx, e.ID, []byte("abc"), ContentOptions{Key: "k"}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	mutations := map[string]func(*domain.Content){
		"md5":    func(c *domain.Content) { c.HashMD5 = "x" },
		"sha1":   func(c *domain.Content) { c.HashSHA1 = "x" },
		"sha256": func(c *domain.Content) { c.HashSHA256 = "x" },
		"size":   func(c *domain.Content) { c.SizeBytes = 99 },
		"key":    func(c *domain.Content) { c.FingerprintedKey = "other" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
				_, err := tx.UpdateEvidence(e.ID, func(ev *domain.Evidence) error {
					mutate(&ev.Content)
					return nil
				})
				return err
			})
			blockedBy(t, err, fingerprintImmutabilityRuleName)
		})
	}

	_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateEvidence(e.ID, func(ev *domain.Evidence) error {
			ev.Content.Key = "replacement"
			ev.Notes = "re-imaged"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("reference changes must be allowed: %v", err)
	}
}

func TestTouchedEvidenceDeduplicates(t *testing.T) {
	changes := []domain.Change{
		{Entity: domain.EntityEvidence, After: domain.Evidence{Base: domain.Base{ID: "a"}}},
		{Entity: domain.EntityCustodyTransfer, After: domain.CustodyTransfer{EvidenceID: "a", TransferredAt: time.Now()}},
		{Entity: domain.EntityCustodyTransfer, After: domain.CustodyTransfer{EvidenceID: "b"}},
		{Entity: domain.EntityCase, After: domain.Case{Base: domain.Base{ID: "c"}}},
	}
	got := touchedEvidence(changes)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected ids %v", got)
	}
}

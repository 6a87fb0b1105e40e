package core

import (
	"context"
	"errors"
	"testing"

	"forensicvault/internal/custody"
	"forensicvault/pkg/domain"
)

func TestCreateEvidenceRecordsInitialDepartment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	e := mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: " INV ", CollectedBy: "Officer Kim"})
	if e.CurrentDepartment != "INV" {
		t.Fatalf("expected department INV, got %q", e.CurrentDepartment)
	}
	if e.ReceivedAt == nil || !e.ReceivedAt.Equal(fixedNow) {
		t.Fatalf("expected received time from first transfer, got %v", e.ReceivedAt)
	}
	history, err := svc.ListCustodyHistory(ctx, e.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history: %v %v", history, err)
	}
	first := history[0]
	if first.FromDepartment != "" || first.ToDepartment != "INV" || first.TransferredBy != "Officer Kim" || first.Notes != InitialTransferNote {
		t.Fatalf("unexpected initial transfer %+v", first)
	}
}

func TestUpdateDepartmentAutomaticSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	e := mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: "INV"})

	req := custody.Request{ToDepartment: "ar", TransferredBy: "clerk", Mode: custody.ModeAutomatic}
	for i := 0; i < 2; i++ {
		if _, _, err := svc.UpdateDepartment(ctx, e.ID, req); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	history, _ := svc.ListCustodyHistory(ctx, e.ID)
	if len(history) != 2 {
		t.Fatalf("expected initial row plus one transfer, got %d", len(history))
	}
	if history[0].FromDepartment != "INV" || history[0].ToDepartment != "ar" {
		t.Fatalf("newest row should be INV->ar, got %+v", history[0])
	}
}

func TestUpdateDepartmentManualAlwaysAppends(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	e := mustCreateEvidence(t, svc, domain.Evidence{})

	for i := 0; i < 2; i++ {
		updated, _, err := svc.UpdateDepartment(ctx, e.ID, custody.Request{ToDepartment: "LAB"})
		if err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
		if updated.CurrentDepartment != "LAB" {
			t.Fatalf("department not moved: %+v", updated)
		}
	}
	history, _ := svc.ListCustodyHistory(ctx, e.ID)
	if len(history) != 2 {
		t.Fatalf("manual transfers should each append, got %d rows", len(history))
	}
	if history[0].Sequence <= history[1].Sequence {
		t.Fatalf("history not newest first: %+v", history)
	}
	if history[0].FromDepartment != "LAB" || history[1].FromDepartment != "" {
		t.Fatalf("unexpected from departments: %+v", history)
	}
}

func TestUpdateDepartmentUnknownEvidence(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.UpdateDepartment(context.Background(), "missing", custody.Request{ToDepartment: "LAB"})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != domain.EntityEvidence {
		t.Fatalf("expected evidence not found, got %v", err)
	}
}

func TestBulkTransferSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc := newTestService(t, WithLogger(logger))
	a := mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: "LAB"})
	b := mustCreateEvidence(t, svc, domain.Evidence{})

	n, err := svc.BulkTransfer(ctx, []string{a.ID, "ghost", b.ID}, custody.Request{ToDepartment: "LAB", TransferredBy: "clerk"})
	if err != nil {
		t.Fatalf("BulkTransfer: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 transfers, got %d", n)
	}
	if logger.count("warn", "bulk transfer skipped unknown evidence") != 1 {
		t.Fatalf("expected one skip warning")
	}
	history, _ := svc.ListCustodyHistory(ctx, a.ID)
	if len(history) != 2 {
		t.Fatalf("bulk transfer to the same department must still append, got %d rows", len(history))
	}
	counts, err := svc.DepartmentCounts(ctx)
	if err != nil || counts["LAB"] != 2 {
		t.Fatalf("DepartmentCounts: %v %v", counts, err)
	}
}

func TestUpdateEvidenceRoutesDepartmentThroughLedger(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	e := mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: "INV", DeviceType: domain.DeviceComputer})
	actor := custody.Request{TransferredBy: "analyst", ReceivedBy: "archivist"}

	updated, _, err := svc.UpdateEvidence(ctx, e.ID, func(e *domain.Evidence) error {
		e.CurrentDepartment = "ar"
		e.EvidenceNumber = "HIJACK"
		e.Brand = "Dell"
		e.Content.HashMD5 = "forged"
		return nil
	}, actor)
	if err != nil {
		t.Fatalf("UpdateEvidence: %v", err)
	}
	if updated.CurrentDepartment != "ar" || updated.ReceivedBy != "archivist" {
		t.Fatalf("department hook not applied: %+v", updated)
	}
	if updated.EvidenceNumber != e.EvidenceNumber || updated.Content.HashMD5 != "" || updated.Brand != "Dell" {
		t.Fatalf("frozen fields changed or edit lost: %+v", updated)
	}

	// Same department again: automatic hook writes nothing.
	if _, _, err := svc.UpdateEvidence(ctx, e.ID, func(e *domain.Evidence) error {
		e.Notes = "rechecked"
		return nil
	}, actor); err != nil {
		t.Fatalf("second update: %v", err)
	}
	history, _ := svc.ListCustodyHistory(ctx, e.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(history))
	}
	if history[0].TransferredBy != "analyst" || history[0].Notes != UpdateTransferNote {
		t.Fatalf("unexpected hook row %+v", history[0])
	}
}

func TestListEvidenceByDepartment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: "LAB"})
	mustCreateEvidence(t, svc, domain.Evidence{CurrentDepartment: "INV"})
	mustCreateEvidence(t, svc, domain.Evidence{})

	lab, err := svc.ListEvidenceByDepartment(ctx, "LAB")
	if err != nil || len(lab) != 1 {
		t.Fatalf("LAB: %v %v", lab, err)
	}
	unassigned, _ := svc.ListEvidenceByDepartment(ctx, "")
	if len(unassigned) != 1 {
		t.Fatalf("expected one item without department, got %d", len(unassigned))
	}
	counts, _ := svc.DepartmentCounts(ctx)
	if counts["LAB"] != 1 || counts["INV"] != 1 || counts[""] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

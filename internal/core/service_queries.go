package core

import (
	"context"

	"forensicvault/internal/custody"
	"forensicvault/pkg/domain"
)

// GetCase returns a case by id.
func (s *Service) GetCase(ctx context.Context, id string) (domain.Case, error) {
	var out domain.Case
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		c, ok := v.FindCase(id)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityCase, ID: id}
		}
		out = c
		return nil
	})
	return out, err
}

// FindCaseByNumber returns the case holding number.
func (s *Service) FindCaseByNumber(ctx context.Context, number string) (domain.Case, error) {
	var out domain.Case
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		c, ok := v.FindCaseByNumber(number)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityCase, ID: number}
		}
		out = c
		return nil
	})
	return out, err
}

// GetEvidence returns an evidence item by id.
func (s *Service) GetEvidence(ctx context.Context, id string) (domain.Evidence, error) {
	var out domain.Evidence
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		e, ok := v.FindEvidence(id)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityEvidence, ID: id}
		}
		out = e
		return nil
	})
	return out, err
}

// FindEvidenceByNumber returns the evidence item holding number.
func (s *Service) FindEvidenceByNumber(ctx context.Context, number string) (domain.Evidence, error) {
	var out domain.Evidence
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		e, ok := v.FindEvidenceByNumber(number)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityEvidence, ID: number}
		}
		out = e
		return nil
	})
	return out, err
}

// ListCases returns all cases ordered by case number.
func (s *Service) ListCases(ctx context.Context) ([]domain.Case, error) {
	var out []domain.Case
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		out = v.ListCases()
		return nil
	})
	return out, err
}

// ListEvidence returns all evidence ordered by evidence number.
func (s *Service) ListEvidence(ctx context.Context) ([]domain.Evidence, error) {
	return s.filterEvidence(ctx, func(domain.Evidence) bool { return true })
}

// ListCaseEvidence returns the evidence bound to caseID.
func (s *Service) ListCaseEvidence(ctx context.Context, caseID string) ([]domain.Evidence, error) {
	return s.filterEvidence(ctx, func(e domain.Evidence) bool {
		return e.CaseID != nil && *e.CaseID == caseID
	})
}

// ListEvidenceByDepartment returns the evidence currently held by department.
// The empty department selects unassigned items.
func (s *Service) ListEvidenceByDepartment(ctx context.Context, department string) ([]domain.Evidence, error) {
	return s.filterEvidence(ctx, func(e domain.Evidence) bool {
		return custody.CurrentDepartment(e) == department
	})
}

func (s *Service) filterEvidence(ctx context.Context, keep func(domain.Evidence) bool) ([]domain.Evidence, error) {
	var out []domain.Evidence
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, e := range v.ListEvidence() {
			if keep(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// DepartmentCounts reports how many evidence items each department holds.
// Unassigned items are counted under "".
func (s *Service) DepartmentCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, e := range v.ListEvidence() {
			counts[custody.CurrentDepartment(e)]++
		}
		return nil
	})
	return counts, err
}

// ListCustodyHistory returns the ledger of an evidence item, newest first.
func (s *Service) ListCustodyHistory(ctx context.Context, evidenceID string) ([]domain.CustodyTransfer, error) {
	var out []domain.CustodyTransfer
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindEvidence(evidenceID); !ok {
			return domain.ErrNotFound{Entity: domain.EntityEvidence, ID: evidenceID}
		}
		out = custody.History(v.ListTransfers(evidenceID))
		return nil
	})
	return out, err
}

// NormalizeDeviceAttributes runs the configured attribute resolver. It has
// no side effects.
func (s *Service) NormalizeDeviceAttributes(deviceType domain.DeviceType, raw map[string]any) (map[string]any, error) {
	return s.resolver.Normalize(deviceType, raw)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forensicvault/internal/custody"
	"forensicvault/internal/identifier"
	"forensicvault/pkg/domain"
)

// Ledger notes written by the service itself.
const (
	InitialTransferNote = "Initial evidence creation"
	UpdateTransferNote  = "Evidence update"
)

// CreateEvidence persists a new evidence item. CaseID is optional; a
// non-empty EvidenceNumber is operator supplied and must be globally unique.
// Device data is normalised before storage. A CurrentDepartment on the input
// is recorded as the first custody transfer rather than written directly.
func (s *Service) CreateEvidence(ctx context.Context, e domain.Evidence) (domain.Evidence, domain.Result, error) {
	var created domain.Evidence
	res, err := s.run(ctx, opCreateEvidence, func(ctx context.Context) (string, domain.Result, error) {
		input := e
		input.EvidenceNumber = strings.TrimSpace(input.EvidenceNumber)
		if input.CaseID != nil && strings.TrimSpace(*input.CaseID) == "" {
			input.CaseID = nil
		}
		s.applyEvidenceDefaults(&input)
		data, err := s.resolver.Normalize(input.DeviceType, input.DeviceData)
		if err != nil {
			return "", domain.Result{}, err
		}
		input.DeviceData = data
		if err := s.validateRecord(input); err != nil {
			return "", domain.Result{}, err
		}
		department := strings.TrimSpace(input.CurrentDepartment)
		input.CurrentDepartment = ""
		input.Content = contentReference(input.Content)

		explicit := input.EvidenceNumber != ""
		res, err := s.withGenerationRetry(explicit, func() (domain.Result, error) {
			return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				candidate := input
				if err := s.assignEvidenceNumber(tx, &candidate, explicit); err != nil {
					return err
				}
				rec, err := tx.CreateEvidence(candidate)
				if err != nil {
					return err
				}
				created = rec
				if department == "" {
					return nil
				}
				out, err := custody.Record(tx, rec.ID, custody.Request{
					ToDepartment:  department,
					TransferredBy: candidate.CollectedBy,
					ReceivedBy:    candidate.ReceivedBy,
					ReceivedAt:    candidate.ReceivedAt,
					Notes:         InitialTransferNote,
					Mode:          custody.ModeManual,
				}, s.now())
				if err != nil {
					return err
				}
				created = out.Evidence
				return nil
			})
		})
		return created.ID, res, err
	})
	return created, res, err
}

func (s *Service) assignEvidenceNumber(tx domain.Transaction, e *domain.Evidence, explicit bool) error {
	view := tx.Snapshot()
	if explicit {
		if _, taken := view.FindEvidenceByNumber(e.EvidenceNumber); taken {
			return domain.DuplicateIdentifierError{Entity: domain.EntityEvidence, Identifier: e.EvidenceNumber}
		}
		return nil
	}
	caseNumber := ""
	if e.CaseID != nil {
		c, ok := tx.FindCase(*e.CaseID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityCase, ID: *e.CaseID}
		}
		caseNumber = c.CaseNumber
	}
	year := identifier.YearPrefix(s.now())
	alloc, err := identifier.NextEvidenceNumber(caseNumber, year, view.EvidenceNumbers(identifier.EvidencePrefix(caseNumber, year)))
	s.warnMalformed(domain.EntityEvidence, alloc.Malformed)
	if err != nil {
		return err
	}
	e.EvidenceNumber = alloc.Number
	return nil
}

// UpdateDepartment records a custody transfer. The request mode defaults to
// manual, which always appends a ledger row; automatic mode skips transfers
// to the department already holding the item.
func (s *Service) UpdateDepartment(ctx context.Context, evidenceID string, req custody.Request) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	if req.Mode == "" {
		req.Mode = custody.ModeManual
	}
	req.ToDepartment = strings.TrimSpace(req.ToDepartment)
	res, err := s.run(ctx, opUpdateDepartment, func(ctx context.Context) (string, domain.Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			out, err := custody.Record(tx, evidenceID, req, s.now())
			if err != nil {
				return err
			}
			if !out.Appended {
				s.logger.Debug("custody unchanged", "evidence_id", evidenceID, "department", req.ToDepartment)
			}
			updated = out.Evidence
			return nil
		})
		return evidenceID, res, err
	})
	return updated, res, err
}

// BulkTransfer moves every listed evidence item to req.ToDepartment, one
// transaction per item. Unknown ids are skipped. It returns the number of
// items transferred before the first failure.
func (s *Service) BulkTransfer(ctx context.Context, ids []string, req custody.Request) (int, error) {
	req.Mode = custody.ModeManual
	count := 0
	for _, id := range ids {
		_, err := s.GetEvidence(ctx, id)
		if err == nil {
			_, _, err = s.UpdateDepartment(ctx, id, req)
		}
		var nf domain.ErrNotFound
		if errors.As(err, &nf) && nf.Entity == domain.EntityEvidence {
			s.logger.Warn("bulk transfer skipped unknown evidence", "evidence_id", id)
			continue
		}
		if err != nil {
			return count, fmt.Errorf("transfer %s: %w", id, err)
		}
		count++
	}
	return count, nil
}

// UpdateEvidence applies a general edit. The evidence number, digests and
// ledger stay under service control: a changed CurrentDepartment is routed
// through the automatic custody hook using the actor fields of req.
func (s *Service) UpdateEvidence(ctx context.Context, id string, mutator func(*domain.Evidence) error, req custody.Request) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	res, err := s.run(ctx, opUpdateEvidence, func(ctx context.Context) (string, domain.Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			current, ok := tx.FindEvidence(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityEvidence, ID: id}
			}
			edited := current
			if err := mutator(&edited); err != nil {
				return err
			}
			if edited.CaseID != nil && strings.TrimSpace(*edited.CaseID) == "" {
				edited.CaseID = nil
			}
			s.applyEvidenceDefaults(&edited)
			data, err := s.resolver.Normalize(edited.DeviceType, edited.DeviceData)
			if err != nil {
				return err
			}
			edited.DeviceData = data
			if err := s.validateRecord(edited); err != nil {
				return err
			}
			target := strings.TrimSpace(edited.CurrentDepartment)
			updated, err = tx.UpdateEvidence(id, func(e *domain.Evidence) error {
				frozen := *e
				*e = edited
				e.EvidenceNumber = frozen.EvidenceNumber
				e.CurrentDepartment = frozen.CurrentDepartment
				e.Content = keepDigests(frozen.Content, edited.Content)
				return nil
			})
			if err != nil {
				return err
			}
			if target == updated.CurrentDepartment {
				return nil
			}
			hook := req
			hook.ToDepartment = target
			hook.Mode = custody.ModeAutomatic
			if hook.Notes == "" {
				hook.Notes = UpdateTransferNote
			}
			out, err := custody.Record(tx, id, hook, s.now())
			if err != nil {
				return err
			}
			updated = out.Evidence
			return nil
		})
		return id, res, err
	})
	return updated, res, err
}

// RenumberEvidence replaces an evidence number with an operator supplied one.
func (s *Service) RenumberEvidence(ctx context.Context, id, number string) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	number = strings.TrimSpace(number)
	res, err := s.run(ctx, opRenumberEvidence, func(ctx context.Context) (string, domain.Result, error) {
		if number == "" {
			return id, domain.Result{}, fmt.Errorf("%w: evidence number required", domain.ErrValidation)
		}
		res, err := s.withGenerationRetry(true, func() (domain.Result, error) {
			return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				if owner, taken := tx.Snapshot().FindEvidenceByNumber(number); taken && owner.ID != id {
					return domain.DuplicateIdentifierError{Entity: domain.EntityEvidence, Identifier: number}
				}
				var err error
				updated, err = tx.UpdateEvidence(id, func(e *domain.Evidence) error {
					e.EvidenceNumber = number
					return nil
				})
				return err
			})
		})
		return id, res, err
	})
	return updated, res, err
}

// DeleteEvidence removes an evidence item together with its custody ledger.
func (s *Service) DeleteEvidence(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteEvidence, func(ctx context.Context) (string, domain.Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteEvidence(id)
		})
		return id, res, err
	})
}

func (s *Service) applyEvidenceDefaults(e *domain.Evidence) {
	if e.DeviceType == "" {
		e.DeviceType = domain.DeviceOther
	}
	if e.Status == "" {
		e.Status = domain.EvidenceStatusCollected
	}
	e.ItemName = strings.TrimSpace(e.ItemName)
	if e.ItemName == "" {
		e.ItemName = e.DeviceType.Label()
	}
	if e.CollectedAt.IsZero() {
		e.CollectedAt = s.now()
	}
}

// contentReference keeps only the pointer part of c; digests are only ever
// written by the fingerprinter.
func contentReference(c domain.Content) domain.Content {
	return domain.Content{Key: c.Key, Name: c.Name, ContentType: c.ContentType}
}

// keepDigests takes the reference fields of next and the fingerprint of prev.
func keepDigests(prev, next domain.Content) domain.Content {
	out := contentReference(next)
	if out.Key == "" && out.Name == "" && out.ContentType == "" {
		out = contentReference(prev)
	}
	out.SizeBytes = prev.SizeBytes
	out.HashMD5 = prev.HashMD5
	out.HashSHA1 = prev.HashSHA1
	out.HashSHA256 = prev.HashSHA256
	out.FingerprintedAt = prev.FingerprintedAt
	out.FingerprintedKey = prev.FingerprintedKey
	return out
}

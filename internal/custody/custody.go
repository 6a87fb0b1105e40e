// Package custody records department-to-department transfers of evidence in
// the append-only chain-of-custody ledger.
package custody

import (
	"sort"
	"time"

	"forensicvault/pkg/domain"
)

// Mode selects how a transfer request treats an unchanged department.
type Mode string

const (
	// ModeManual always appends a ledger row, even when the department does
	// not change. Explicit and bulk transfers use it.
	ModeManual Mode = "manual"
	// ModeAutomatic appends only when the department actually changes. It is
	// used by the department-change hook on evidence edits.
	ModeAutomatic Mode = "automatic"
)

// Request describes one transfer.
type Request struct {
	ToDepartment  string
	TransferredBy string
	ReceivedBy    string
	Notes         string
	// At overrides the transfer time. Zero uses the transaction clock.
	At time.Time
	// ReceivedAt is stored on the evidence when set. For a first assignment
	// without it the transfer time is used.
	ReceivedAt *time.Time
	Mode       Mode
}

// Outcome reports what Record did.
type Outcome struct {
	Evidence domain.Evidence
	Transfer domain.CustodyTransfer
	Appended bool
}

// Record appends a transfer for evidenceID inside tx and moves the evidence's
// current department to the requested one. The evidence is read inside the
// transaction so the from-department is never stale.
func Record(tx domain.Transaction, evidenceID string, req Request, now time.Time) (Outcome, error) {
	evidence, ok := tx.FindEvidence(evidenceID)
	if !ok {
		return Outcome{}, domain.ErrNotFound{Entity: domain.EntityEvidence, ID: evidenceID}
	}
	from := evidence.CurrentDepartment
	if req.Mode == ModeAutomatic && from == req.ToDepartment {
		return Outcome{Evidence: evidence}, nil
	}
	at := req.At
	if at.IsZero() {
		at = now
	}
	row, err := tx.AppendTransfer(domain.CustodyTransfer{
		EvidenceID:     evidenceID,
		FromDepartment: from,
		ToDepartment:   req.ToDepartment,
		TransferredBy:  req.TransferredBy,
		ReceivedBy:     req.ReceivedBy,
		TransferredAt:  at,
		Notes:          req.Notes,
	})
	if err != nil {
		return Outcome{}, err
	}
	updated, err := tx.UpdateEvidence(evidenceID, func(e *domain.Evidence) error {
		e.CurrentDepartment = req.ToDepartment
		if req.ReceivedBy != "" {
			e.ReceivedBy = req.ReceivedBy
		}
		switch {
		case req.ReceivedAt != nil:
			stamp := *req.ReceivedAt
			e.ReceivedAt = &stamp
		case from == "" && e.ReceivedAt == nil:
			stamp := at
			e.ReceivedAt = &stamp
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Evidence: updated, Transfer: row, Appended: true}, nil
}

// CurrentDepartment returns the cached holder of the evidence.
func CurrentDepartment(e domain.Evidence) string {
	return e.CurrentDepartment
}

// DeriveDepartment returns the destination of the last ledger row in causal
// order, or "" for an empty ledger.
func DeriveDepartment(transfers []domain.CustodyTransfer) string {
	if len(transfers) == 0 {
		return ""
	}
	last := transfers[0]
	for _, t := range transfers[1:] {
		if t.Sequence >= last.Sequence {
			last = t
		}
	}
	return last.ToDepartment
}

// History returns the ledger newest first by transfer time. Rows with equal
// times are ordered by insertion, newest first.
func History(transfers []domain.CustodyTransfer) []domain.CustodyTransfer {
	out := append([]domain.CustodyTransfer(nil), transfers...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TransferredAt.Equal(out[j].TransferredAt) {
			return out[i].TransferredAt.After(out[j].TransferredAt)
		}
		return out[i].Sequence > out[j].Sequence
	})
	return out
}

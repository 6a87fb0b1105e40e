package core

import (
	"context"
	"fmt"

	"forensicvault/internal/custody"
	"forensicvault/pkg/domain"
)

const custodyConsistencyRuleName = "custody_consistency"

// NewCustodyConsistencyRule blocks commits that leave an evidence item's
// cached department different from the destination of its last ledger row.
func NewCustodyConsistencyRule() domain.Rule {
	return custodyConsistencyRule{}
}

type custodyConsistencyRule struct{}

func (custodyConsistencyRule) Name() string { return custodyConsistencyRuleName }

func (custodyConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range touchedEvidence(changes) {
		evidence, ok := view.FindEvidence(id)
		if !ok {
			continue
		}
		derived := custody.DeriveDepartment(view.ListTransfers(id))
		if cached := custody.CurrentDepartment(evidence); cached != derived {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     custodyConsistencyRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("evidence %s holds department %q but its custody ledger ends at %q", evidence.EvidenceNumber, cached, derived),
				Entity:   domain.EntityEvidence,
				EntityID: id,
			})
		}
	}
	return res, nil
}

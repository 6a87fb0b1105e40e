package core

import (
	"context"

	"forensicvault/pkg/domain"
)

const identifierPresenceRuleName = "identifier_presence"

// NewIdentifierPresenceRule blocks cases and evidence committed without a
// human-readable number.
func NewIdentifierPresenceRule() domain.Rule {
	return identifierPresenceRule{}
}

type identifierPresenceRule struct{}

func (identifierPresenceRule) Name() string { return identifierPresenceRuleName }

func (identifierPresenceRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Case:
			if after.CaseNumber == "" {
				res.Violations = append(res.Violations, missingIdentifier(domain.EntityCase, after.ID))
			}
		case domain.Evidence:
			if after.EvidenceNumber == "" {
				res.Violations = append(res.Violations, missingIdentifier(domain.EntityEvidence, after.ID))
			}
		}
	}
	return res, nil
}

func missingIdentifier(entity domain.EntityType, id string) domain.Violation {
	return domain.Violation{
		Rule:     identifierPresenceRuleName,
		Severity: domain.SeverityBlock,
		Message:  string(entity) + " has no number",
		Entity:   entity,
		EntityID: id,
	}
}

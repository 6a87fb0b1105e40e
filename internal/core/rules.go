package core

import "forensicvault/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewIdentifierPresenceRule())
	engine.Register(NewCustodyConsistencyRule())
	engine.Register(NewFingerprintImmutabilityRule())
	return engine
}

// touchedEvidence returns the ids of evidence created or updated by changes,
// plus the owners of appended ledger rows, in first-seen order.
func touchedEvidence(changes []domain.Change) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Evidence:
			add(after.ID)
		case domain.CustodyTransfer:
			add(after.EvidenceID)
		}
	}
	return ids
}

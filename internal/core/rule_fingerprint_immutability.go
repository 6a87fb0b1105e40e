package core

import (
	"context"
	"fmt"

	"forensicvault/pkg/domain"
)

const fingerprintImmutabilityRuleName = "fingerprint_immutability"

// NewFingerprintImmutabilityRule blocks updates that alter digests already
// recorded on an evidence item.
func NewFingerprintImmutabilityRule() domain.Rule {
	return fingerprintImmutabilityRule{}
}

type fingerprintImmutabilityRule struct{}

func (fingerprintImmutabilityRule) Name() string { return fingerprintImmutabilityRuleName }

func (fingerprintImmutabilityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityEvidence || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Evidence)
		if !ok || !before.Content.Fingerprinted() {
			continue
		}
		after, ok := change.After.(domain.Evidence)
		if !ok {
			continue
		}
		if field, changed := digestDrift(before.Content, after.Content); changed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     fingerprintImmutabilityRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("evidence %s: recorded %s cannot change", before.EvidenceNumber, field),
				Entity:   domain.EntityEvidence,
				EntityID: before.ID,
			})
		}
	}
	return res, nil
}

func digestDrift(before, after domain.Content) (string, bool) {
	switch {
	case before.HashMD5 != after.HashMD5:
		return "md5 digest", true
	case before.HashSHA1 != after.HashSHA1:
		return "sha1 digest", true
	case before.HashSHA256 != after.HashSHA256:
		return "sha256 digest", true
	case before.SizeBytes != after.SizeBytes:
		return "content size", true
	case before.FingerprintedKey != after.FingerprintedKey:
		return "fingerprinted content key", true
	}
	return "", false
}

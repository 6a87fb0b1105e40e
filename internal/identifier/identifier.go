// Package identifier produces the human-readable case and evidence numbers.
//
// Case numbers have the shape "YY-NNNN" and evidence numbers either
// "<case number>-NNN" or "YY-UNASSIGNED-NNN" for evidence without a case.
// Generation scans the identifiers already issued within a scope and returns
// the next suffix after the highest one found. It never consults a counter, so
// the caller must hold the scan and the write inside one store transaction and
// rely on the store's uniqueness constraint as the final arbiter.
package identifier

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"forensicvault/pkg/domain"
)

const (
	caseWidth     = 4
	evidenceWidth = 3
	maxCaseSeq    = 9999
	maxEvidSeq    = 999

	// UnassignedScope labels evidence that is not bound to a case.
	UnassignedScope = "UNASSIGNED"
)

// YearPrefix renders the two-digit year used to scope case numbers.
func YearPrefix(t time.Time) string {
	return fmt.Sprintf("%02d", t.Year()%100)
}

// CasePrefix returns the scan prefix for case numbers of a year.
func CasePrefix(year string) string {
	return year + "-"
}

// EvidencePrefix returns the scan prefix for evidence numbers. An empty
// caseNumber selects the unassigned scope of the given year.
func EvidencePrefix(caseNumber, year string) string {
	if caseNumber == "" {
		return year + "-" + UnassignedScope + "-"
	}
	return caseNumber + "-"
}

// Allocation is the outcome of a generation scan.
type Allocation struct {
	Number string
	// Malformed lists in-scope identifiers whose suffix was not an integer.
	// They are ignored by the scan and surfaced so callers can log them.
	Malformed []string
}

// NextCaseNumber returns the next case number for year given the numbers
// already stored. Only identifiers starting with "YY-" participate.
func NextCaseNumber(year string, existing []string) (Allocation, error) {
	return next(CasePrefix(year), existing, caseWidth, maxCaseSeq)
}

// NextEvidenceNumber returns the next evidence number in the scope derived
// from caseNumber (or the unassigned scope of year when caseNumber is empty).
func NextEvidenceNumber(caseNumber, year string, existing []string) (Allocation, error) {
	return next(EvidencePrefix(caseNumber, year), existing, evidenceWidth, maxEvidSeq)
}

func next(prefix string, existing []string, width int, limit int) (Allocation, error) {
	highest := 0
	var malformed []string
	for _, candidate := range existing {
		if !strings.HasPrefix(candidate, prefix) {
			continue
		}
		seq, ok := suffix(candidate)
		if !ok {
			malformed = append(malformed, candidate)
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	sort.Strings(malformed)
	alloc := Allocation{Malformed: malformed}
	if highest >= limit {
		return alloc, fmt.Errorf("%w: scope %q reached %d", domain.ErrSequenceExhausted, strings.TrimSuffix(prefix, "-"), limit)
	}
	alloc.Number = fmt.Sprintf("%s%0*d", prefix, width, highest+1)
	return alloc, nil
}

// suffix parses the decimal integer after the last '-'.
func suffix(identifier string) (int, bool) {
	idx := strings.LastIndex(identifier, "-")
	if idx < 0 || idx == len(identifier)-1 {
		return 0, false
	}
	raw := identifier[idx+1:]
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

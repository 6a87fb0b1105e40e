package domain

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "custody drift"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "custody drift") {
		t.Fatalf("expected blocking message in error, got %q", err.Error())
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

type emptyView struct{}

func (emptyView) ListCases() []Case                            { return nil }
func (emptyView) ListEvidence() []Evidence                     { return nil }
func (emptyView) FindCase(string) (Case, bool)                 { return Case{}, false }
func (emptyView) FindEvidence(string) (Evidence, bool)         { return Evidence{}, false }
func (emptyView) FindCaseByNumber(string) (Case, bool)         { return Case{}, false }
func (emptyView) FindEvidenceByNumber(string) (Evidence, bool) { return Evidence{}, false }
func (emptyView) CaseNumbers(string) []string                  { return nil }
func (emptyView) EvidenceNumbers(string) []string              { return nil }
func (emptyView) ListTransfers(string) []CustodyTransfer       { return nil }

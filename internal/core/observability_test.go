package core

import (
	"context"
	"errors"
	"testing"

	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/domain"
)

// conflictingStore fails the first n transactions as if a concurrent writer
// had claimed the generated number.
type conflictingStore struct {
	domain.PersistentStore
	remaining int
	calls     int
}

func (s *conflictingStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.calls++
	if s.remaining > 0 {
		s.remaining--
		return domain.Result{}, domain.IdentifierConflictError{Entity: domain.EntityCase, Identifier: "25-0001"}
	}
	return s.PersistentStore.RunInTransaction(ctx, fn)
}

func TestGeneratedNumberRetriesOnConflict(t *testing.T) {
	cases := []struct {
		name      string
		conflicts int
		wantErr   bool
		wantCalls int
	}{
		{"first attempt", 0, false, 1},
		{"recovers within bound", 2, false, 3},
		{"exhausts attempts", 3, true, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &conflictingStore{PersistentStore: memory.NewStore(NewDefaultRulesEngine()), remaining: tc.conflicts}
			logger := &captureLogger{}
			svc := NewService(store, WithClock(fixedClock()), WithLogger(logger))
			_, _, err := svc.CreateCase(context.Background(), domain.Case{Name: "Race"})
			var dup domain.DuplicateIdentifierError
			if tc.wantErr != errors.As(err, &dup) {
				t.Fatalf("unexpected error %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("CreateCase: %v", err)
			}
			if store.calls != tc.wantCalls {
				t.Fatalf("expected %d transactions, got %d", tc.wantCalls, store.calls)
			}
			retries := logger.count("warn", "identifier conflict, regenerating")
			if want := min(tc.conflicts, tc.wantCalls-1); retries != want {
				t.Fatalf("expected %d retry warnings, got %d", want, retries)
			}
		})
	}
}

func TestExplicitNumberIsNotRetried(t *testing.T) {
	store := &conflictingStore{PersistentStore: memory.NewStore(NewDefaultRulesEngine()), remaining: 1}
	svc := NewService(store, WithClock(fixedClock()))
	_, _, err := svc.CreateCase(context.Background(), domain.Case{CaseNumber: "25-0001", Name: "Explicit"})
	var dup domain.DuplicateIdentifierError
	if !errors.As(err, &dup) || store.calls != 1 {
		t.Fatalf("expected a single attempt ending in duplicate, got %v after %d calls", err, store.calls)
	}
}

func TestMaxGenerationAttemptsOption(t *testing.T) {
	store := &conflictingStore{PersistentStore: memory.NewStore(NewDefaultRulesEngine()), remaining: 4}
	svc := NewService(store, WithClock(fixedClock()), WithMaxGenerationAttempts(5), WithMaxGenerationAttempts(0))
	if _, _, err := svc.CreateCase(context.Background(), domain.Case{Name: "Patient"}); err != nil {
		t.Fatalf("expected success on fifth attempt, got %v", err)
	}
	if store.calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", store.calls)
	}
}

func TestRunRecordsObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	logger := &captureLogger{}
	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
	)

	c := mustCreateCase(t, svc, domain.Case{Name: "Observed"})
	entry := audit.last(t)
	if entry.Operation != opCreateCase || entry.Status != AuditStatusSuccess || entry.EntityID != c.ID {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if entry.Entity != domain.EntityCase || entry.Action != domain.ActionCreate || !entry.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected audit metadata %+v", entry)
	}

	if _, err := svc.DeleteCase(ctx, "missing"); err == nil {
		t.Fatalf("expected delete of missing case to fail")
	}
	entry = audit.last(t)
	if entry.Operation != opDeleteCase || entry.Status != AuditStatusError || entry.Error == "" {
		t.Fatalf("unexpected failure audit %+v", entry)
	}

	if got := metrics.snapshot(); len(got) != 2 || !got[0].success || got[1].success {
		t.Fatalf("unexpected metric calls %+v", got)
	}
	if got := tracer.endedSpans(); len(got) != 2 || got[0] != "create_case:true" || got[1] != "delete_case:false" {
		t.Fatalf("unexpected spans %v", got)
	}
	if logger.count("error", "operation failed") != 1 {
		t.Fatalf("expected failure to be logged")
	}
}

func TestRunWarnsOnNonBlockingViolations(t *testing.T) {
	engine := NewDefaultRulesEngine()
	engine.Register(warnEveryChange{})
	logger := &captureLogger{}
	svc := NewInMemoryService(engine, WithClock(fixedClock()), WithLogger(logger))

	_, res, err := svc.CreateCase(context.Background(), domain.Case{Name: "Warned"})
	if err != nil {
		t.Fatalf("warnings must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "warn_every_change" {
		t.Fatalf("expected the warning in the result, got %+v", res)
	}
	if logger.count("warn", "rule violation") != 1 {
		t.Fatalf("expected violation to be logged")
	}
}

type warnEveryChange struct{}

func (warnEveryChange) Name() string { return "warn_every_change" }

func (warnEveryChange) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "warn_every_change", Severity: domain.SeverityWarn, Message: "noted"}}}, nil
}

func TestClockFuncFallsBackToWallClock(t *testing.T) {
	var f ClockFunc
	if f.Now().IsZero() || f.Now().Location() != fixedNow.Location() {
		t.Fatalf("nil ClockFunc should report UTC wall clock")
	}
}

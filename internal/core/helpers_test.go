package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"forensicvault/pkg/domain"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() ClockFunc {
	return func() time.Time { return fixedNow }
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), append([]Option{WithClock(fixedClock())}, opts...)...)
}

func mustCreateCase(t *testing.T, svc *Service, c domain.Case) domain.Case {
	t.Helper()
	created, _, err := svc.CreateCase(context.Background(), c)
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return created
}

func mustCreateEvidence(t *testing.T, svc *Service, e domain.Evidence) domain.Evidence {
	t.Helper()
	created, _, err := svc.CreateEvidence(context.Background(), e)
	if err != nil {
		t.Fatalf("create evidence: %v", err)
	}
	return created
}

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			n++
		}
	}
	return n
}

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *captureAudit) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *captureAudit) last(t *testing.T) AuditEntry {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		t.Fatalf("no audit entries recorded")
	}
	return a.entries[len(a.entries)-1]
}

type metricCall struct {
	operation string
	success   bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

func (m *captureMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricCall{operation: operation, success: success})
}

type captureTracer struct {
	mu    sync.Mutex
	ended []string
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (t *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, captureSpan{tracer: t, op: op}
}

func (s captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, fmt.Sprintf("%s:%v", s.op, err == nil))
}

func (m *captureMetrics) snapshot() []metricCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]metricCall(nil), m.calls...)
}

func (t *captureTracer) endedSpans() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ended...)
}

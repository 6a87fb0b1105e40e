package core

import (
	"context"
	"time"

	"forensicvault/pkg/domain"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports wall-clock UTC.
type ClockFunc func() time.Time

// Now returns the current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// AuditStatus marks the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service operation.
type AuditEntry struct {
	Operation string            `json:"operation"`
	Entity    domain.EntityType `json:"entity"`
	Action    domain.Action     `json:"action"`
	EntityID  string            `json:"entity_id,omitempty"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries for every mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes the latency and outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is finished with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// operationMeta maps audited operations to the entity and action they touch.
var operationMeta = map[string]struct {
	entity domain.EntityType
	action domain.Action
}{
	opCreateCase:       {domain.EntityCase, domain.ActionCreate},
	opUpdateCase:       {domain.EntityCase, domain.ActionUpdate},
	opRenumberCase:     {domain.EntityCase, domain.ActionUpdate},
	opDeleteCase:       {domain.EntityCase, domain.ActionDelete},
	opCreateEvidence:   {domain.EntityEvidence, domain.ActionCreate},
	opUpdateEvidence:   {domain.EntityEvidence, domain.ActionUpdate},
	opRenumberEvidence: {domain.EntityEvidence, domain.ActionUpdate},
	opDeleteEvidence:   {domain.EntityEvidence, domain.ActionDelete},
	opAttachContent:    {domain.EntityEvidence, domain.ActionUpdate},
	opUploadContent:    {domain.EntityEvidence, domain.ActionUpdate},
	opAttachBlob:       {domain.EntityEvidence, domain.ActionUpdate},
	opUpdateDepartment: {domain.EntityCustodyTransfer, domain.ActionCreate},
}

const (
	opCreateCase       = "create_case"
	opUpdateCase       = "update_case"
	opRenumberCase     = "renumber_case"
	opDeleteCase       = "delete_case"
	opCreateEvidence   = "create_evidence"
	opUpdateEvidence   = "update_evidence"
	opRenumberEvidence = "renumber_evidence"
	opDeleteEvidence   = "delete_evidence"
	opAttachContent    = "attach_content"
	opUploadContent    = "upload_content"
	opAttachBlob       = "attach_blob"
	opUpdateDepartment = "update_department"
)

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationMeta[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

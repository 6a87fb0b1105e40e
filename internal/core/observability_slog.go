package core

import (
	"context"
	"log/slog"
)

// SlogAuditRecorder writes audit entries as structured log records. Failures
// are logged at warn level.
type SlogAuditRecorder struct {
	logger *slog.Logger
}

// NewSlogAuditRecorder returns a recorder writing to logger, or to
// slog.Default when nil.
func NewSlogAuditRecorder(logger *slog.Logger) *SlogAuditRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditRecorder{logger: logger.With(slog.String("component", "audit"))}
}

// Record implements AuditRecorder.
func (r *SlogAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("operation", entry.Operation),
		slog.String("entity", string(entry.Entity)),
		slog.String("action", string(entry.Action)),
		slog.String("entity_id", entry.EntityID),
		slog.String("status", string(entry.Status)),
		slog.Duration("duration", entry.Duration),
		slog.Time("timestamp", entry.Timestamp),
	}
	if entry.Status == AuditStatusError {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", entry.Error))
	}
	r.logger.LogAttrs(ctx, level, "audit", attrs...)
}

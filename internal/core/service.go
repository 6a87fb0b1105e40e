package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forensicvault/internal/blob"
	"forensicvault/internal/identifier"
	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/pkg/deviceattrs"
	"forensicvault/pkg/domain"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxGenerationAttempts bounds how often an auto-generated number is
// re-scanned after losing a uniqueness race.
const DefaultMaxGenerationAttempts = 3

// Service exposes the transactional case, evidence and custody operations.
type Service struct {
	store       domain.PersistentStore
	engine      *domain.RulesEngine
	resolver    deviceattrs.Resolver
	blobs       blob.Store
	validate    *validator.Validate
	maxAttempts int

	clock   Clock
	now     func() time.Time
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. The clock is pushed down to stores
// that stamp their own timestamps so records and ledger rows agree.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a span factory.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithBlobStore configures the content store used by UploadContent and AttachBlob.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		s.blobs = store
	}
}

// WithMaxGenerationAttempts sets the retry bound for auto-generated numbers.
// Values below one are ignored.
func WithMaxGenerationAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithAttributeResolver replaces the device attribute resolver.
func WithAttributeResolver(resolver deviceattrs.Resolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:       store,
		engine:      extractRulesEngine(store),
		resolver:    deviceattrs.NewResolver(deviceattrs.Permissive),
		validate:    newValidator(),
		maxAttempts: DefaultMaxGenerationAttempts,
		logger:      noopLogger{},
		audit:       noopAuditRecorder{},
		metrics:     noopMetricsRecorder{},
		tracer:      noopTracer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.now = selectNowFunc(store, svc.clock)
	if svc.clock != nil {
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(svc.now)
		}
	}
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated by the store, if it exposes one.
func (s *Service) RulesEngine() *domain.RulesEngine {
	return s.engine
}

// BlobStore returns the configured content store, or nil.
func (s *Service) BlobStore() blob.Store {
	return s.blobs
}

type rulesEngineProvider interface {
	RulesEngine() *domain.RulesEngine
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(func() time.Time)
}

func extractRulesEngine(store domain.PersistentStore) *domain.RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

func selectNowFunc(store domain.PersistentStore, clock Clock) func() time.Time {
	if clock != nil {
		return func() time.Time { return clock.Now().UTC() }
	}
	if provider, ok := store.(nowFuncProvider); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return func() time.Time { return time.Now().UTC() }
}

// run wraps a mutating operation with tracing, metrics, logging and audit.
// fn reports the id of the record it touched.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (string, domain.Result, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	entityID, res, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

// withGenerationRetry runs attempt until it stops failing on a number
// conflict. Explicit numbers are never retried.
func (s *Service) withGenerationRetry(explicit bool, attempt func() (domain.Result, error)) (domain.Result, error) {
	for i := 1; ; i++ {
		res, err := attempt()
		var conflict domain.IdentifierConflictError
		if !errors.As(err, &conflict) {
			return res, err
		}
		if explicit || i >= s.maxAttempts {
			return res, domain.DuplicateIdentifierError{Entity: conflict.Entity, Identifier: conflict.Identifier}
		}
		s.logger.Warn("identifier conflict, regenerating", "entity", string(conflict.Entity), "identifier", conflict.Identifier, "attempt", i)
	}
}

func (s *Service) warnMalformed(entity domain.EntityType, malformed []string) {
	for _, id := range malformed {
		s.logger.Warn("malformed identifier skipped", "entity", string(entity), "identifier", id)
	}
}

// CreateCase persists a new case. A non-empty CaseNumber is an operator
// supplied number and must be globally unique; otherwise the next number of
// the current year is generated.
func (s *Service) CreateCase(ctx context.Context, c domain.Case) (domain.Case, domain.Result, error) {
	var created domain.Case
	res, err := s.run(ctx, opCreateCase, func(ctx context.Context) (string, domain.Result, error) {
		input := c
		input.CaseNumber = strings.TrimSpace(input.CaseNumber)
		s.applyCaseDefaults(&input)
		if err := s.validateRecord(input); err != nil {
			return "", domain.Result{}, err
		}
		explicit := input.CaseNumber != ""
		res, err := s.withGenerationRetry(explicit, func() (domain.Result, error) {
			return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				candidate := input
				view := tx.Snapshot()
				if explicit {
					if _, taken := view.FindCaseByNumber(candidate.CaseNumber); taken {
						return domain.DuplicateIdentifierError{Entity: domain.EntityCase, Identifier: candidate.CaseNumber}
					}
				} else {
					year := identifier.YearPrefix(s.now())
					alloc, err := identifier.NextCaseNumber(year, view.CaseNumbers(identifier.CasePrefix(year)))
					s.warnMalformed(domain.EntityCase, alloc.Malformed)
					if err != nil {
						return err
					}
					candidate.CaseNumber = alloc.Number
				}
				var err error
				created, err = tx.CreateCase(candidate)
				return err
			})
		})
		return created.ID, res, err
	})
	return created, res, err
}

// UpdateCase mutates a case. The case number cannot be changed here; use
// RenumberCase. Closing a case stamps its close time when unset.
func (s *Service) UpdateCase(ctx context.Context, id string, mutator func(*domain.Case) error) (domain.Case, domain.Result, error) {
	var updated domain.Case
	res, err := s.run(ctx, opUpdateCase, func(ctx context.Context) (string, domain.Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateCase(id, func(c *domain.Case) error {
				number := c.CaseNumber
				if err := mutator(c); err != nil {
					return err
				}
				c.CaseNumber = number
				if c.Status == domain.CaseStatusClosed && c.ClosedAt == nil {
					closed := s.now()
					c.ClosedAt = &closed
				}
				return s.validateRecord(*c)
			})
			return err
		})
		return id, res, err
	})
	return updated, res, err
}

// RenumberCase replaces a case number with an operator supplied one. Evidence
// numbers already issued under the old number are left untouched.
func (s *Service) RenumberCase(ctx context.Context, id, number string) (domain.Case, domain.Result, error) {
	var updated domain.Case
	number = strings.TrimSpace(number)
	res, err := s.run(ctx, opRenumberCase, func(ctx context.Context) (string, domain.Result, error) {
		if number == "" {
			return id, domain.Result{}, fmt.Errorf("%w: case number required", domain.ErrValidation)
		}
		res, err := s.withGenerationRetry(true, func() (domain.Result, error) {
			return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				if owner, taken := tx.Snapshot().FindCaseByNumber(number); taken && owner.ID != id {
					return domain.DuplicateIdentifierError{Entity: domain.EntityCase, Identifier: number}
				}
				var err error
				updated, err = tx.UpdateCase(id, func(c *domain.Case) error {
					c.CaseNumber = number
					return nil
				})
				return err
			})
		})
		return id, res, err
	})
	return updated, res, err
}

// DeleteCase removes a case. Evidence bound to it is kept and becomes unassigned.
func (s *Service) DeleteCase(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, opDeleteCase, func(ctx context.Context) (string, domain.Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteCase(id)
		})
		return id, res, err
	})
}

func (s *Service) applyCaseDefaults(c *domain.Case) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Status == "" {
		c.Status = domain.CaseStatusActive
	}
	if c.Priority == "" {
		c.Priority = domain.PriorityMedium
	}
	if c.OpenedAt.IsZero() {
		c.OpenedAt = s.now()
	}
	if c.Status == domain.CaseStatusClosed && c.ClosedAt == nil {
		closed := s.now()
		c.ClosedAt = &closed
	}
}

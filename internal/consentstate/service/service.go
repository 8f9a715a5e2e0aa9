package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"consentstate/internal/audit"
	"consentstate/internal/consentstate/metrics"
	"consentstate/internal/consentstate/models"
	"consentstate/internal/consentstate/resolver"
	"consentstate/internal/consentstate/store"
	dErrors "consentstate/pkg/domain-errors"
	"consentstate/pkg/platform/sentinel"
	"consentstate/pkg/requestcontext"
)

// Store defines the persistence interface for raw consent records.
// Error Contract:
// - Get returns sentinel.ErrNotFound when nothing is stored under the key
// - Other errors are infrastructure failures (sentinel.ErrUnavailable when the circuit is open)
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Config binds the service to the front end's storage key and the policy in force.
type Config struct {
	StorageKey string
	PolicyHash string
}

type Option func(*Service)

// Service resolves, saves and clears the consent record of one visitor at a time.
type Service struct {
	store      Store
	storageKey string
	policyHash string
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New constructs the service. cfg.StorageKey must not be empty.
func New(st Store, cfg Config, opts ...Option) *Service {
	svc := &Service{
		store:      st,
		storageKey: cfg.StorageKey,
		policyHash: cfg.PolicyHash,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.New(slog.DiscardHandler)
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer("consentstate/service")
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditor sets the audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// PolicyHash returns the policy hash used when a caller supplies none.
func (s *Service) PolicyHash() string {
	return s.policyHash
}

// Resolve computes the banner state for a visitor. An empty expectedHash
// means "the policy currently in force".
//
// Errors: bad_request for a missing visitor, unavailable when storage cannot
// be read. A corrupt record is not an error; it resolves as if absent and is
// reported through metrics and audit.
func (s *Service) Resolve(ctx context.Context, visitorID, expectedHash string) (models.ResolvedState, error) {
	start := time.Now()
	if expectedHash == "" {
		expectedHash = s.policyHash
	}
	ctx, span := s.tracer.Start(ctx, "consentstate.Resolve",
		trace.WithAttributes(attribute.String("consent.expected_hash", expectedHash)))
	var err error
	defer func() { endSpan(span, err) }()

	scoped, err := s.scope(visitorID)
	if err != nil {
		return models.ResolvedState{}, err
	}

	res := resolver.New(scoped, s.storageKey, resolver.WithLogger(s.logger.With("visitor_id", visitorID)))
	state, outcome, err := res.Resolve(ctx, expectedHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve consent state",
			"visitor_id", visitorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.ResolvedState{}, err
	}

	span.SetAttributes(
		attribute.String("consent.outcome", outcome.String()),
		attribute.Bool("consent.banner_visible", state.IsBannerVisible),
	)
	s.metrics.IncrementResolutions(outcome.String())
	s.metrics.ObserveResolveLatency(time.Since(start).Seconds())

	if outcome == models.OutcomeMalformed {
		s.emitAudit(ctx, audit.Event{
			VisitorID:  visitorID,
			Action:     models.AuditActionStateMalformed,
			Outcome:    models.AuditOutcomeDiscarded,
			PolicyHash: expectedHash,
		})
	}

	s.logger.DebugContext(ctx, "consent state resolved",
		"visitor_id", visitorID,
		"outcome", outcome.String(),
		"banner_visible", state.IsBannerVisible,
		"request_id", requestcontext.RequestID(ctx),
	)
	return state, nil
}

// Save records the visitor's choices and returns the resulting banner state
// against the policy in force.
func (s *Service) Save(ctx context.Context, visitorID string, req *models.SaveRequest) (models.ResolvedState, error) {
	ctx, span := s.tracer.Start(ctx, "consentstate.Save")
	var err error
	defer func() { endSpan(span, err) }()

	scoped, err := s.scope(visitorID)
	if err != nil {
		return models.ResolvedState{}, err
	}
	if req == nil {
		err = dErrors.New(dErrors.CodeBadRequest, "request body is required")
		return models.ResolvedState{}, err
	}
	req.Normalize()
	if err = req.Validate(); err != nil {
		err = dErrors.Wrap(err, dErrors.CodeValidation, validationMessage(err))
		return models.ResolvedState{}, err
	}

	stored := req.ToStoredState()
	payload, err := json.Marshal(stored)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode consent record")
		return models.ResolvedState{}, err
	}
	if err = scoped.Set(ctx, s.storageKey, string(payload)); err != nil {
		s.logger.ErrorContext(ctx, "failed to save consent state",
			"visitor_id", visitorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "consent storage unavailable")
		return models.ResolvedState{}, err
	}

	s.metrics.IncrementStatesSaved()
	s.metrics.ObserveConsentsPerSave(len(stored.Consent))
	s.emitAudit(ctx, audit.Event{
		VisitorID:  visitorID,
		Action:     models.AuditActionStateSaved,
		Outcome:    models.AuditOutcomeStored,
		PolicyHash: req.Hash,
	})
	s.logger.InfoContext(ctx, "consent state saved",
		"visitor_id", visitorID,
		"policy_hash", req.Hash,
		"consent_count", len(stored.Consent),
		"request_id", requestcontext.RequestID(ctx),
	)

	state, _ := resolver.Reconcile(stored, s.policyHash)
	return state, nil
}

// Clear removes the visitor's record so the banner shows again.
func (s *Service) Clear(ctx context.Context, visitorID string) error {
	ctx, span := s.tracer.Start(ctx, "consentstate.Clear")
	var err error
	defer func() { endSpan(span, err) }()

	scoped, err := s.scope(visitorID)
	if err != nil {
		return err
	}
	if err = scoped.Delete(ctx, s.storageKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear consent state",
			"visitor_id", visitorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "consent storage unavailable")
		return err
	}

	s.metrics.IncrementStatesCleared()
	s.emitAudit(ctx, audit.Event{
		VisitorID: visitorID,
		Action:    models.AuditActionStateCleared,
		Outcome:   models.AuditOutcomeCleared,
	})
	s.logger.InfoContext(ctx, "consent state cleared",
		"visitor_id", visitorID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) scope(visitorID string) (*store.ScopedStore, error) {
	scoped, err := store.Scoped(s.store, visitorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidInput) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "missing or invalid visitor id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scope consent storage")
	}
	return scoped, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"visitor_id", event.VisitorID,
			"error", err,
		)
	}
}

// validationMessage strips the sentinel suffix so clients see only the field problem.
func validationMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.ErrInvalidInput.Error())
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

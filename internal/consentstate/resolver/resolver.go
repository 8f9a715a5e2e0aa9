// Package resolver decides whether the consent banner must be shown by
// reconciling the stored consent record with the current policy hash.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"consentstate/internal/consentstate/models"
	dErrors "consentstate/pkg/domain-errors"
	"consentstate/pkg/platform/sentinel"
	"consentstate/pkg/requestcontext"
)

// Reader returns the raw value stored under key.
// Error Contract:
// - returns sentinel.ErrNotFound when nothing is stored under key
// - any other error is an infrastructure failure
type Reader interface {
	Get(ctx context.Context, key string) (string, error)
}

// Resolver reads one storage key and derives the banner state from it.
// It never writes to storage.
type Resolver struct {
	reader Reader
	key    string
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report discarded records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New binds a resolver to a reader and the storage key holding the record.
func New(reader Reader, key string, opts ...Option) *Resolver {
	r := &Resolver{reader: reader, key: key}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the storage key the resolver reads.
func (r *Resolver) Key() string {
	return r.key
}

// Resolve reads the stored record and computes the banner state for expectedHash.
//
// A missing or empty record yields the default state. So does a record that
// cannot be decoded: the visitor is asked again rather than trusted on data
// that cannot be read, and the returned outcome is OutcomeMalformed.
//
// Errors: returns a CodeUnavailable domain error when the storage read fails
// for any reason other than the key being absent.
func (r *Resolver) Resolve(ctx context.Context, expectedHash string) (models.ResolvedState, models.Outcome, error) {
	raw, err := r.reader.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.DefaultState(), models.OutcomeAbsent, nil
		}
		return models.ResolvedState{}, "", dErrors.Wrap(err, dErrors.CodeUnavailable, "consent storage unavailable")
	}
	if raw == "" {
		return models.DefaultState(), models.OutcomeAbsent, nil
	}

	stored, err := Decode(raw)
	if err != nil {
		r.logMalformed(ctx, err)
		return models.DefaultState(), models.OutcomeMalformed, nil
	}

	state, outcome := Reconcile(stored, expectedHash)
	return state, outcome, nil
}

// Reconcile derives the banner state from an already decoded record.
func Reconcile(stored models.StoredState, expectedHash string) (models.ResolvedState, models.Outcome) {
	state := models.ResolvedState{
		Consent:          []models.Consent{},
		IsBannerVisible:  !stored.MatchesHash(expectedHash),
		IsDetailsVisible: false,
	}
	if len(stored.Consent) > 0 {
		state.Consent = stored.Consent
	}
	if state.IsBannerVisible {
		return state, models.OutcomeStale
	}
	return state, models.OutcomeCurrent
}

func (r *Resolver) logMalformed(ctx context.Context, err error) {
	if r.logger == nil {
		return
	}
	r.logger.WarnContext(ctx, "discarding malformed consent record",
		"key", r.key,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

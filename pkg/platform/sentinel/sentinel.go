package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: key does not exist in the backend
// - ErrUnavailable: backend temporarily unreachable (or circuit open)
// - ErrInvalidInput: caller passed something the backend cannot store
//
// For validation errors on requests, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
)

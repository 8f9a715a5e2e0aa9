package models

import (
	"fmt"
	"strings"

	"consentstate/pkg/platform/sentinel"
)

const (
	// MaxHashLength bounds the policy hash accepted on save.
	MaxHashLength = 256
	// MaxConsentEntries bounds the number of consent entries in one record.
	MaxConsentEntries = 256
)

// SaveRequest records the visitor's choices against a policy hash.
type SaveRequest struct {
	Consent []Consent `json:"consent"`
	Hash    string    `json:"hash"`
}

// Normalize applies defaults and sanitizes inputs.
func (r *SaveRequest) Normalize() {
	if r == nil {
		return
	}
	r.Hash = strings.TrimSpace(r.Hash)
	if r.Consent == nil {
		r.Consent = []Consent{}
	}
}

// Validate checks that the request is well-formed.
func (r *SaveRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required: %w", sentinel.ErrInvalidInput)
	}
	if r.Hash == "" {
		return fmt.Errorf("hash is required: %w", sentinel.ErrInvalidInput)
	}
	if len(r.Hash) > MaxHashLength {
		return fmt.Errorf("hash exceeds %d characters: %w", MaxHashLength, sentinel.ErrInvalidInput)
	}
	if len(r.Consent) > MaxConsentEntries {
		return fmt.Errorf("consent exceeds %d entries: %w", MaxConsentEntries, sentinel.ErrInvalidInput)
	}
	for i, c := range r.Consent {
		if len(c) == 0 {
			return fmt.Errorf("consent entry %d is empty: %w", i, sentinel.ErrInvalidInput)
		}
	}
	return nil
}

// ToStoredState converts the request into the persisted record shape.
func (r *SaveRequest) ToStoredState() StoredState {
	hash := r.Hash
	return StoredState{Consent: r.Consent, Hash: &hash}
}

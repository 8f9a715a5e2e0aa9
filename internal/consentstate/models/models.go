package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Audit event actions
const (
	AuditActionStateSaved     = "consent_state_saved"
	AuditActionStateCleared   = "consent_state_cleared"
	AuditActionStateMalformed = "consent_state_malformed"
)

// Audit event outcomes
const (
	AuditOutcomeStored    = "stored"
	AuditOutcomeCleared   = "cleared"
	AuditOutcomeDiscarded = "discarded"
)

// Consent is one entry of the visitor's recorded choices. Its structure belongs
// to the banner front end; the service stores and returns it without
// inspecting it.
type Consent json.RawMessage

// MarshalJSON emits the entry verbatim. A nil entry encodes as JSON null.
func (c Consent) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return c, nil
}

// UnmarshalJSON keeps a compacted copy of the raw entry.
func (c *Consent) UnmarshalJSON(data []byte) error {
	if c == nil {
		return errors.New("models.Consent: UnmarshalJSON on nil pointer")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*c = append((*c)[:0], buf.Bytes()...)
	return nil
}

// StoredState is the persisted record under the consent storage key.
//
// Both fields are optional. A JSON null is treated the same as a missing
// field, so pointers and nil slices distinguish "absent" from "empty".
type StoredState struct {
	Consent []Consent `json:"consent"`
	Hash    *string   `json:"hash,omitempty"`
}

// HasHash reports whether the record carries a policy hash.
func (s StoredState) HasHash() bool {
	return s.Hash != nil
}

// MatchesHash reports whether the stored hash equals expected. A record without
// a hash never matches, not even an empty expected hash.
func (s StoredState) MatchesHash(expected string) bool {
	return s.Hash != nil && *s.Hash == expected
}

// ResolvedState is what the banner needs to render.
type ResolvedState struct {
	Consent          []Consent `json:"consent"`
	IsBannerVisible  bool      `json:"isBannerVisible"`
	IsDetailsVisible bool      `json:"isDetailsVisible"`
}

// DefaultState is the state of a visitor with no usable record: nothing
// consented, banner shown, details collapsed.
func DefaultState() ResolvedState {
	return ResolvedState{
		Consent:          []Consent{},
		IsBannerVisible:  true,
		IsDetailsVisible: false,
	}
}

// Outcome classifies how a resolution was reached.
type Outcome string

const (
	// OutcomeAbsent means no record (or an empty one) was stored.
	OutcomeAbsent Outcome = "absent"
	// OutcomeMalformed means a record existed but could not be decoded.
	OutcomeMalformed Outcome = "malformed"
	// OutcomeCurrent means the stored hash matched the expected one.
	OutcomeCurrent Outcome = "current"
	// OutcomeStale means a record existed but the policy changed since.
	OutcomeStale Outcome = "stale"
)

// String returns the outcome label used in metrics and logs.
func (o Outcome) String() string {
	return string(o)
}

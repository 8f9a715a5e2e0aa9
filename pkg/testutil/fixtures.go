package testutil

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TestVisitors provides pre-generated visitor IDs for deterministic test data.
var TestVisitors = struct {
	Visitor1 string
	Visitor2 string
}{
	Visitor1: uuid.MustParse("11111111-1111-4111-8111-111111111111").String(),
	Visitor2: uuid.MustParse("22222222-2222-4222-8222-222222222222").String(),
}

// RecordBuilder builds raw consent records as the banner front end stores them.
type RecordBuilder struct {
	consent []any
	hash    *string
	extra   map[string]any
}

// NewRecord starts a record with no consent entries and no hash.
func NewRecord() *RecordBuilder {
	return &RecordBuilder{extra: map[string]any{}}
}

// WithHash sets the policy hash the visitor consented under.
func (b *RecordBuilder) WithHash(hash string) *RecordBuilder {
	b.hash = &hash
	return b
}

// WithConsent appends a consent entry.
func (b *RecordBuilder) WithConsent(entry any) *RecordBuilder {
	b.consent = append(b.consent, entry)
	return b
}

// WithField sets an additional top-level property.
func (b *RecordBuilder) WithField(name string, value any) *RecordBuilder {
	b.extra[name] = value
	return b
}

// JSON renders the record.
func (b *RecordBuilder) JSON() string {
	doc := make(map[string]any, len(b.extra)+2)
	for k, v := range b.extra {
		doc[k] = v
	}
	if b.consent != nil {
		doc["consent"] = b.consent
	}
	if b.hash != nil {
		doc["hash"] = *b.hash
	}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(out)
}

// AnalyticsConsent is a typical consent entry.
func AnalyticsConsent(granted bool) map[string]any {
	return map[string]any{"id": "analytics", "granted": granted}
}

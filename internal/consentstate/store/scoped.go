package store

import (
	"context"
	"fmt"
	"strings"

	"consentstate/pkg/platform/sentinel"
)

const visitorNamespace = "visitor:"

// ScopedStore confines every key to one visitor's namespace, giving each
// visitor the isolated key space a browser gives each origin.
type ScopedStore struct {
	inner  Store
	prefix string
}

// Scoped returns a view of inner restricted to visitorID.
func Scoped(inner Store, visitorID string) (*ScopedStore, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, fmt.Errorf("visitor id is required: %w", sentinel.ErrInvalidInput)
	}
	if strings.Contains(visitorID, ":") {
		return nil, fmt.Errorf("visitor id contains reserved separator: %w", sentinel.ErrInvalidInput)
	}
	return &ScopedStore{inner: inner, prefix: visitorNamespace + visitorID + ":"}, nil
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

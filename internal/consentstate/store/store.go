// Package store persists raw consent records in key-value backends.
//
// Error Contract:
// All backends follow this error pattern:
// - Get returns sentinel.ErrNotFound when nothing is stored under the key
// - Delete of a missing key is not an error
// - Infrastructure failures are returned wrapped with operation context
package store

import "context"

// Backend names used in metrics and logs.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Store reads and writes raw string values by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

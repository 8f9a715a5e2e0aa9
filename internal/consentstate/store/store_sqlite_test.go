package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "consent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, newSQLiteStore(t))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consent.db")
	ctx := context.Background()

	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "visitor:a:cookie-consent", `{"hash":"v2"}`))
	require.NoError(t, first.Close())

	second, err := NewSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, "visitor:a:cookie-consent")
	require.NoError(t, err)
	assert.Equal(t, `{"hash":"v2"}`, got)
}

func TestSQLiteStoreClosedDBFails(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "consent.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "not found")
}

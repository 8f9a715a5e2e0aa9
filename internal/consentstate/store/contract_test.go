package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentstate/pkg/platform/sentinel"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is not found", func(t *testing.T) {
		_, err := s.Get(ctx, "contract-missing")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("set then get round-trips the raw value", func(t *testing.T) {
		raw := `{"consent":[{"id":"analytics","granted":true}],"hash":"v2"}`
		require.NoError(t, s.Set(ctx, "contract-roundtrip", raw))

		got, err := s.Get(ctx, "contract-roundtrip")
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "contract-overwrite", `{"hash":"v1"}`))
		require.NoError(t, s.Set(ctx, "contract-overwrite", `{"hash":"v2"}`))

		got, err := s.Get(ctx, "contract-overwrite")
		require.NoError(t, err)
		assert.Equal(t, `{"hash":"v2"}`, got)
	})

	t.Run("empty and malformed values are stored verbatim", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "contract-empty", ""))
		got, err := s.Get(ctx, "contract-empty")
		require.NoError(t, err)
		assert.Equal(t, "", got)

		require.NoError(t, s.Set(ctx, "contract-garbage", "{not json"))
		got, err = s.Get(ctx, "contract-garbage")
		require.NoError(t, err)
		assert.Equal(t, "{not json", got)
	})

	t.Run("delete removes and tolerates missing keys", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "contract-delete", `{}`))
		require.NoError(t, s.Delete(ctx, "contract-delete"))
		require.NoError(t, s.Delete(ctx, "contract-delete"))

		_, err := s.Get(ctx, "contract-delete")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

// Package storagetest holds the behaviour every storage driver must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing_key", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "cart_404")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set_get_overwrite", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "cart_1", []byte(`[{"quantity":1}]`)))
		require.NoError(t, s.Set(ctx, "cart_1", []byte(`[]`)))

		got, err := s.Get(ctx, "cart_1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), got)
	})

	t.Run("returned_value_is_a_copy", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "accessToken", []byte("abc")))

		got, err := s.Get(ctx, "accessToken")
		require.NoError(t, err)
		got[0] = 'x'

		again, err := s.Get(ctx, "accessToken")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "refreshToken", []byte("r")))
		require.NoError(t, s.Delete(ctx, "refreshToken"))
		require.NoError(t, s.Delete(ctx, "refreshToken"), "deleting a missing key must succeed")

		_, err := s.Get(ctx, "refreshToken")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/memory"
)

func TestSealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	sealed, err := storage.NewSealed(inner, []byte("device-secret"))
	require.NoError(t, err)

	require.NoError(t, sealed.Set(ctx, "accessToken", []byte("eyJhbGciOi")))

	raw, err := inner.Get(ctx, "accessToken")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "eyJhbGciOi")

	got, err := sealed.Get(ctx, "accessToken")
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi", string(got))
}

func TestSealed_Rejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		tamper func(t *testing.T, inner *memory.Store)
		secret string
	}{
		{
			name: "flipped_byte",
			tamper: func(t *testing.T, inner *memory.Store) {
				raw, err := inner.Get(ctx, "refreshToken")
				require.NoError(t, err)
				raw[len(raw)-1] ^= 0xff
				require.NoError(t, inner.Set(ctx, "refreshToken", raw))
			},
			secret: "device-secret",
		},
		{
			name: "moved_to_other_key",
			tamper: func(t *testing.T, inner *memory.Store) {
				raw, err := inner.Get(ctx, "accessToken")
				require.NoError(t, err)
				require.NoError(t, inner.Set(ctx, "refreshToken", raw))
			},
			secret: "device-secret",
		},
		{
			name: "truncated",
			tamper: func(t *testing.T, inner *memory.Store) {
				require.NoError(t, inner.Set(ctx, "refreshToken", []byte{1, 2, 3}))
			},
			secret: "device-secret",
		},
		{
			name:   "wrong_secret",
			tamper: func(t *testing.T, inner *memory.Store) {},
			secret: "other-secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := memory.New()
			writer, err := storage.NewSealed(inner, []byte("device-secret"))
			require.NoError(t, err)
			require.NoError(t, writer.Set(ctx, "accessToken", []byte("access")))
			require.NoError(t, writer.Set(ctx, "refreshToken", []byte("refresh")))

			tt.tamper(t, inner)

			reader, err := storage.NewSealed(inner, []byte(tt.secret))
			require.NoError(t, err)
			_, err = reader.Get(ctx, "refreshToken")
			assert.ErrorIs(t, err, storage.ErrCorrupt)
		})
	}
}

func TestSealed_NoSecret(t *testing.T) {
	_, err := storage.NewSealed(memory.New(), nil)
	assert.ErrorIs(t, err, storage.ErrNoSecret)
}

func TestSealed_MissingKey(t *testing.T) {
	sealed, err := storage.NewSealed(memory.New(), []byte("s"))
	require.NoError(t, err)
	_, err = sealed.Get(context.Background(), "accessToken")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

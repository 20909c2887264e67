package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/redis"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/storagetest"
)

func newStore(t *testing.T, cfg redis.Config) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Addr = mr.Addr()
	s, err := redis.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newStore(t, redis.Config{KeyPrefix: "storefront:"})
		return s
	})
}

func TestStore_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, redis.Config{KeyPrefix: "kiosk-3:", TTL: time.Hour})

	require.NoError(t, s.Set(ctx, "cart_5", []byte("[]")))
	assert.True(t, mr.Exists("kiosk-3:cart_5"))
	assert.Equal(t, time.Hour, mr.TTL("kiosk-3:cart_5"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(ctx, "cart_5")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.New(context.Background(), redis.Config{Addr: addr})
	assert.Error(t, err)
}

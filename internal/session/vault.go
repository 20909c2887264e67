package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

const (
	accessTokenKey  = "accessToken"
	refreshTokenKey = "refreshToken"
)

// Vault keeps the token pair in a storage.Store, normally a storage.Sealed.
type Vault struct {
	store storage.Store
}

func NewVault(store storage.Store) *Vault {
	return &Vault{store: store}
}

func (v *Vault) Tokens(ctx context.Context) (user.Tokens, error) {
	access, err := v.get(ctx, accessTokenKey)
	if err != nil {
		return user.Tokens{}, err
	}
	refresh, err := v.get(ctx, refreshTokenKey)
	if err != nil {
		return user.Tokens{}, err
	}
	return user.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// get treats unreadable values like missing ones: a token that cannot be
// decrypted is useless and the user has to sign in again.
func (v *Vault) get(ctx context.Context, key string) (string, error) {
	b, err := v.store.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "", nil
	case errors.Is(err, storage.ErrCorrupt):
		log.Warn().Err(err).Str("key", key).Msg("session: discarding unreadable token")
		return "", nil
	case err != nil:
		return "", fmt.Errorf("session: read %s: %w", key, err)
	}
	return string(b), nil
}

func (v *Vault) SetTokens(ctx context.Context, t user.Tokens) error {
	if err := v.store.Set(ctx, accessTokenKey, []byte(t.AccessToken)); err != nil {
		return fmt.Errorf("session: write %s: %w", accessTokenKey, err)
	}
	if err := v.store.Set(ctx, refreshTokenKey, []byte(t.RefreshToken)); err != nil {
		return fmt.Errorf("session: write %s: %w", refreshTokenKey, err)
	}
	return nil
}

func (v *Vault) ClearTokens(ctx context.Context) error {
	return errors.Join(
		v.store.Delete(ctx, accessTokenKey),
		v.store.Delete(ctx, refreshTokenKey),
	)
}

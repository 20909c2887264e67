// Package session holds the signed-in user and drives login, registration,
// logout and startup restoration of the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

var ErrInvalidCredentials = errors.New("session: email and password are required")

type AuthAPI interface {
	Login(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error)
	Register(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error)
	Profile(ctx context.Context) (*user.User, error)
	Logout(ctx context.Context) error
}

type TokenReader interface {
	Tokens(ctx context.Context) (user.Tokens, error)
}

type SignInHook func(ctx context.Context, u user.User)
type SignOutHook func(ctx context.Context)

type Store struct {
	api      AuthAPI
	tokens   TokenReader
	notifier notify.Notifier
	validate *validator.Validate

	mu      sync.RWMutex
	user    *user.User
	loading bool

	hooksMu   sync.RWMutex
	onSignIn  []SignInHook
	onSignOut []SignOutHook
}

// New returns a store in the loading state; LoadUser ends it.
func New(authAPI AuthAPI, tokens TokenReader, notifier notify.Notifier) *Store {
	return &Store{
		api:      authAPI,
		tokens:   tokens,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		loading:  true,
	}
}

// OnSignIn registers fn to run after a user becomes current.
func (s *Store) OnSignIn(fn SignInHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onSignIn = append(s.onSignIn, fn)
}

// OnSignOut registers fn to run after the current user is cleared.
func (s *Store) OnSignOut(fn SignOutHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

func (s *Store) Login(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.authenticate(ctx, s.api.Login, email, password)
	if err != nil {
		notify.Error(s.notifier, "Login failed", "Please check your credentials and try again")
		return nil, fmt.Errorf("session: login: %w", err)
	}
	notify.Success(s.notifier, "Welcome back!", "You've been logged in successfully")
	return u, nil
}

func (s *Store) Register(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.authenticate(ctx, s.api.Register, email, password)
	if err != nil {
		notify.Error(s.notifier, "Registration failed", "Please try again")
		return nil, fmt.Errorf("session: register: %w", err)
	}
	notify.Success(s.notifier, "Account created!", "Welcome to Dermatouch")
	return u, nil
}

func (s *Store) authenticate(
	ctx context.Context,
	call func(context.Context, user.Credentials) (*user.AuthResponse, error),
	email, password string,
) (*user.User, error) {
	creds := user.Credentials{Email: email, Password: password}
	if err := s.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	resp, err := call(ctx, creds)
	if err != nil {
		return nil, err
	}

	u := resp.User
	if prev := s.CurrentUser(); prev != nil && prev.ID != u.ID {
		log.Info().Int64("user_id", prev.ID).Msg("session: switching user")
		s.setUser(nil)
		s.signedOut(ctx)
	}
	s.setUser(&u)
	log.Info().Int64("user_id", u.ID).Msg("session: signed in")
	s.signedIn(ctx, u)
	return &u, nil
}

// Logout always ends the local session, even when clearing tokens fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session: failed to clear tokens on logout")
	}
	s.setUser(nil)
	s.signedOut(ctx)
	notify.Success(s.notifier, "Logged out", "See you next time!")
	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// ExpireSession ends the session after the API client gave up renewing it.
// Tokens are already gone at this point.
func (s *Store) ExpireSession(ctx context.Context) {
	s.setUser(nil)
	s.signedOut(ctx)
	notify.Error(s.notifier, "Session expired", "Please login again.")
}

// LoadUser restores the session from stored tokens. A failed profile fetch
// clears the tokens. Loading is false afterwards in every case.
func (s *Store) LoadUser(ctx context.Context) error {
	defer s.setLoading(false)

	tokens, err := s.tokens.Tokens(ctx)
	if err != nil {
		s.setUser(nil)
		return fmt.Errorf("session: read tokens: %w", err)
	}
	if tokens.AccessToken == "" {
		s.setUser(nil)
		return nil
	}

	u, err := s.api.Profile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session: could not restore session, clearing tokens")
		if clearErr := s.api.Logout(ctx); clearErr != nil {
			log.Error().Err(clearErr).Msg("session: failed to clear tokens")
		}
		s.setUser(nil)
		return fmt.Errorf("session: load profile: %w", err)
	}

	s.setUser(u)
	log.Info().Int64("user_id", u.ID).Msg("session: restored")
	s.signedIn(ctx, *u)
	return nil
}

func (s *Store) CurrentUser() *user.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot is the session as shown to the UI. AccessTokenExpiresAt is read
// from the token without verifying it.
type Snapshot struct {
	User                 *user.User `json:"user"`
	Authenticated        bool       `json:"authenticated"`
	Loading              bool       `json:"loading"`
	AccessTokenExpiresAt *time.Time `json:"accessTokenExpiresAt,omitempty"`
}

func (s *Store) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{User: s.CurrentUser(), Loading: s.IsLoading()}
	snap.Authenticated = snap.User != nil

	tokens, err := s.tokens.Tokens(ctx)
	if err != nil || tokens.AccessToken == "" {
		return snap
	}
	snap.AccessTokenExpiresAt = accessTokenExpiry(tokens.AccessToken)
	return snap
}

func accessTokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debug().Err(err).Msg("session: access token is not a JWT")
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}

func (s *Store) setUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if u != nil {
		s.loading = false
	}
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Store) signedIn(ctx context.Context, u user.User) {
	s.hooksMu.RLock()
	hooks := append([]SignInHook{}, s.onSignIn...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, u)
	}
}

func (s *Store) signedOut(ctx context.Context) {
	s.hooksMu.RLock()
	hooks := append([]SignOutHook{}, s.onSignOut...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

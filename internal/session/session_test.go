package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/session"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Register(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Profile(ctx context.Context) (*user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type staticTokens user.Tokens

func (s staticTokens) Tokens(context.Context) (user.Tokens, error) {
	return user.Tokens(s), nil
}

func newStore(tokens user.Tokens) (*session.Store, *MockAuthAPI, *notify.Feed) {
	mockAPI := new(MockAuthAPI)
	feed := notify.NewFeed(10)
	return session.New(mockAPI, staticTokens(tokens), feed), mockAPI, feed
}

func TestStore_Login(t *testing.T) {
	creds := user.Credentials{Email: "asha@example.com", Password: "secret"}
	resp := &user.AuthResponse{
		User:   user.User{ID: 12, Email: creds.Email, Role: user.RoleUser},
		Tokens: user.Tokens{AccessToken: "a", RefreshToken: "r"},
	}

	tests := []struct {
		name      string
		email     string
		setupMock func(m *MockAuthAPI)
		wantErr   error
		wantTitle string
	}{
		{
			name:  "success",
			email: creds.Email,
			setupMock: func(m *MockAuthAPI) {
				m.On("Login", mock.Anything, creds).Return(resp, nil).Once()
			},
			wantTitle: "Welcome back!",
		},
		{
			name:      "invalid_email_skips_backend",
			email:     "not-an-email",
			setupMock: func(m *MockAuthAPI) {},
			wantErr:   session.ErrInvalidCredentials,
			wantTitle: "Login failed",
		},
		{
			name:  "backend_rejects",
			email: creds.Email,
			setupMock: func(m *MockAuthAPI) {
				m.On("Login", mock.Anything, creds).Return(nil, errors.New("Invalid credentials")).Once()
			},
			wantErr:   errors.New("Invalid credentials"),
			wantTitle: "Login failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mockAPI, feed := newStore(user.Tokens{})
			tt.setupMock(mockAPI)

			var signedIn []int64
			store.OnSignIn(func(_ context.Context, u user.User) { signedIn = append(signedIn, u.ID) })

			u, err := store.Login(context.Background(), tt.email, "secret")

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, session.ErrInvalidCredentials) {
					assert.ErrorIs(t, err, session.ErrInvalidCredentials)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				assert.Nil(t, u)
				assert.Nil(t, store.CurrentUser())
				assert.Empty(t, signedIn)
			} else {
				require.NoError(t, err)
				assert.EqualValues(t, 12, u.ID)
				assert.Equal(t, u, store.CurrentUser())
				assert.False(t, store.IsLoading())
				assert.Equal(t, []int64{12}, signedIn)
			}

			require.NotEmpty(t, feed.Recent())
			assert.Equal(t, tt.wantTitle, feed.Recent()[0].Title)
			mockAPI.AssertExpectations(t)
		})
	}
}

func TestStore_Register(t *testing.T) {
	store, mockAPI, feed := newStore(user.Tokens{})
	mockAPI.On("Register", mock.Anything, user.Credentials{Email: "new@example.com", Password: "pw"}).
		Return(&user.AuthResponse{User: user.User{ID: 5, Email: "new@example.com"}}, nil).Once()

	u, err := store.Register(context.Background(), "new@example.com", "pw")
	require.NoError(t, err)
	assert.EqualValues(t, 5, u.ID)
	assert.Equal(t, "Account created!", feed.Recent()[0].Title)
	assert.Equal(t, "Welcome to Dermatouch", feed.Recent()[0].Message)
	mockAPI.AssertExpectations(t)
}

func TestStore_Logout(t *testing.T) {
	store, mockAPI, feed := newStore(user.Tokens{})
	mockAPI.On("Login", mock.Anything, mock.Anything).
		Return(&user.AuthResponse{User: user.User{ID: 1}}, nil).Once()
	mockAPI.On("Logout", mock.Anything).Return(errors.New("keychain locked")).Once()

	_, err := store.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)

	signedOut := 0
	store.OnSignOut(func(context.Context) { signedOut++ })

	err = store.Logout(context.Background())
	require.Error(t, err)
	assert.Nil(t, store.CurrentUser(), "user is cleared even when token removal fails")
	assert.Equal(t, 1, signedOut)
	assert.Equal(t, "Logged out", feed.Recent()[0].Title)
	mockAPI.AssertExpectations(t)
}

func TestStore_SwitchingUserSignsOutPrevious(t *testing.T) {
	ctx := context.Background()
	store, mockAPI, _ := newStore(user.Tokens{})
	mockAPI.On("Login", mock.Anything, mock.Anything).
		Return(&user.AuthResponse{User: user.User{ID: 1}}, nil).Twice()
	mockAPI.On("Register", mock.Anything, mock.Anything).
		Return(&user.AuthResponse{User: user.User{ID: 2}}, nil).Once()

	var events []string
	store.OnSignIn(func(_ context.Context, u user.User) { events = append(events, fmt.Sprintf("in:%d", u.ID)) })
	store.OnSignOut(func(context.Context) { events = append(events, "out") })

	_, err := store.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	_, err = store.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	_, err = store.Register(ctx, "b@b.co", "pw")
	require.NoError(t, err)

	assert.Equal(t, []string{"in:1", "in:1", "out", "in:2"}, events)
	assert.EqualValues(t, 2, store.CurrentUser().ID)
	mockAPI.AssertExpectations(t)
}

func TestStore_LoadUser(t *testing.T) {
	t.Run("no_token", func(t *testing.T) {
		store, mockAPI, _ := newStore(user.Tokens{})
		assert.True(t, store.IsLoading())

		require.NoError(t, store.LoadUser(context.Background()))
		assert.False(t, store.IsLoading())
		assert.Nil(t, store.CurrentUser())
		mockAPI.AssertNotCalled(t, "Profile", mock.Anything)
	})

	t.Run("profile_fails_clears_tokens", func(t *testing.T) {
		store, mockAPI, _ := newStore(user.Tokens{AccessToken: "a", RefreshToken: "r"})
		mockAPI.On("Profile", mock.Anything).Return(nil, errors.New("boom")).Once()
		mockAPI.On("Logout", mock.Anything).Return(nil).Once()

		err := store.LoadUser(context.Background())
		require.Error(t, err)
		assert.False(t, store.IsLoading())
		assert.Nil(t, store.CurrentUser())
		mockAPI.AssertExpectations(t)
	})

	t.Run("restores_and_fires_hooks", func(t *testing.T) {
		store, mockAPI, feed := newStore(user.Tokens{AccessToken: "a", RefreshToken: "r"})
		mockAPI.On("Profile", mock.Anything).Return(&user.User{ID: 8}, nil).Once()

		var hooked int64
		store.OnSignIn(func(_ context.Context, u user.User) { hooked = u.ID })

		require.NoError(t, store.LoadUser(context.Background()))
		assert.EqualValues(t, 8, store.CurrentUser().ID)
		assert.EqualValues(t, 8, hooked)
		assert.Empty(t, feed.Recent(), "silent restore")
		mockAPI.AssertExpectations(t)
	})
}

func TestStore_ExpireSession(t *testing.T) {
	store, mockAPI, feed := newStore(user.Tokens{AccessToken: "a"})
	mockAPI.On("Profile", mock.Anything).Return(&user.User{ID: 3}, nil).Once()
	require.NoError(t, store.LoadUser(context.Background()))

	cleared := false
	store.OnSignOut(func(context.Context) { cleared = true })

	store.ExpireSession(context.Background())
	assert.Nil(t, store.CurrentUser())
	assert.True(t, cleared)
	assert.Equal(t, "Session expired", feed.Recent()[0].Title)
}

func TestStore_Snapshot(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	store, _, _ := newStore(user.Tokens{AccessToken: token})
	snap := store.Snapshot(context.Background())
	require.NotNil(t, snap.AccessTokenExpiresAt)
	assert.True(t, exp.Equal(*snap.AccessTokenExpiresAt))
	assert.False(t, snap.Authenticated)

	opaque, _, _ := newStore(user.Tokens{AccessToken: "opaque"})
	assert.Nil(t, opaque.Snapshot(context.Background()).AccessTokenExpiresAt)
}

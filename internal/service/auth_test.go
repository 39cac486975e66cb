package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpin/internal/domain"
	"qpin/internal/token"
)

// collidingTokenRepo wraps the real store and forces the first n Create
// calls to report a duplicate identifier.
type collidingTokenRepo struct {
	domain.RefreshTokenRepository
	conflicts int
	calls     int
}

func (m *collidingTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) (*domain.RefreshToken, error) {
	m.calls++
	if m.calls <= m.conflicts {
		return nil, domain.ErrConflict("refresh token jti already exists")
	}
	return m.RefreshTokenRepository.Create(ctx, t)
}

// seenJTIRepo wraps the real store and reports the first n identifiers as
// already taken, before any record is written.
type seenJTIRepo struct {
	domain.RefreshTokenRepository
	seen        int
	existsCalls int
	createCalls int
}

func (m *seenJTIRepo) ExistsByJTI(ctx context.Context, jti string) (bool, error) {
	m.existsCalls++
	return m.existsCalls <= m.seen, nil
}

func (m *seenJTIRepo) Create(ctx context.Context, t *domain.RefreshToken) (*domain.RefreshToken, error) {
	m.createCalls++
	return m.RefreshTokenRepository.Create(ctx, t)
}

type mockIdentityProvider struct {
	authURLFn  func(state string) string
	exchangeFn func(ctx context.Context, code string) (*domain.ExternalIdentity, error)
}

func (m *mockIdentityProvider) AuthURL(state string) string {
	if m.authURLFn != nil {
		return m.authURLFn(state)
	}
	panic("unexpected call to mockIdentityProvider.AuthURL")
}

func (m *mockIdentityProvider) Exchange(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	panic("unexpected call to mockIdentityProvider.Exchange")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthService_IssueTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)

	pair, err := env.auth.IssueTokens(ctx, u, "cli", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	access, ok := env.codec.Verify(pair.AccessToken, token.TypeAccess)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(u.ID, 10), access.Subject)
	assert.Equal(t, domain.RoleHR, access.Role)

	refresh, ok := env.codec.Verify(pair.RefreshToken, token.TypeRefresh)
	require.True(t, ok)
	require.NotEmpty(t, refresh.JTI)

	rec, err := env.tokens.GetByJTI(ctx, refresh.JTI)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rec.UserID)
	assert.True(t, rec.IsActive)
	require.NotNil(t, rec.DeviceInfo)
	assert.Equal(t, "cli", *rec.DeviceInfo)
	assert.WithinDuration(t, pair.RefreshExpiresAt, rec.ExpiresAt, time.Second)
}

func TestAuthService_IssueTokensRetriesOnCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)

	colliding := &collidingTokenRepo{RefreshTokenRepository: env.tokens, conflicts: 2}
	auth := NewAuthService(env.users, colliding, env.codec, env.enduser, nil, time.Minute, time.Hour, discardLogger())

	pair, err := auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, colliding.calls)

	refresh, ok := env.codec.Verify(pair.RefreshToken, token.TypeRefresh)
	require.True(t, ok)
	_, err = env.tokens.GetByJTI(ctx, refresh.JTI)
	require.NoError(t, err)
}

func TestAuthService_IssueTokensSkipsTakenIdentifiers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)

	taken := &seenJTIRepo{RefreshTokenRepository: env.tokens, seen: 2}
	auth := NewAuthService(env.users, taken, env.codec, env.enduser, nil, time.Minute, time.Hour, discardLogger())

	pair, err := auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)
	// The two taken identifiers are discarded before any write; only the
	// third attempt reaches the store.
	assert.Equal(t, 3, taken.existsCalls)
	assert.Equal(t, 1, taken.createCalls)

	refresh, ok := env.codec.Verify(pair.RefreshToken, token.TypeRefresh)
	require.True(t, ok)
	_, err = env.tokens.GetByJTI(ctx, refresh.JTI)
	require.NoError(t, err)
}

func TestAuthService_IssueTokensExhaustsRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)

	colliding := &collidingTokenRepo{RefreshTokenRepository: env.tokens, conflicts: 3}
	auth := NewAuthService(env.users, colliding, env.codec, env.enduser, nil, time.Minute, time.Hour, discardLogger())

	_, err := auth.IssueTokens(ctx, u, "", "")
	var internal *domain.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, 3, colliding.calls)
}

func TestAuthService_Refresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	access, err := env.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, ok := env.codec.Verify(access, token.TypeAccess)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(u.ID, 10), claims.Subject)
	assert.Equal(t, domain.RoleHR, claims.Role)
}

func TestAuthService_RefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	require.NoError(t, env.users.SetRole(ctx, u.ID, domain.RoleAdmin))

	access, err := env.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	claims, ok := env.codec.Verify(access, token.TypeAccess)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestAuthService_RefreshRejectsRevoked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, pair.RefreshToken))

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_RefreshRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	var unauthorized *domain.UnauthorizedError

	_, err = env.auth.Refresh(ctx, "not-a-token")
	require.ErrorAs(t, err, &unauthorized)

	// An access token presented to the refresh endpoint must fail the
	// type check even though its signature is valid.
	_, err = env.auth.Refresh(ctx, pair.AccessToken)
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_RefreshRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	inactive := false
	_, err = env.users.Update(ctx, u.ID, domain.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_LogoutIgnoresBadInput(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.auth.Logout(context.Background(), "garbage"))
}

func TestAuthService_LogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	pair, err := env.auth.IssueTokens(ctx, u, "", "")
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, pair.RefreshToken))
	require.NoError(t, env.auth.Logout(ctx, pair.RefreshToken))
}

func TestAuthService_RevokeAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "hr@example.com", domain.RoleHR)
	for i := 0; i < 3; i++ {
		_, err := env.auth.IssueTokens(ctx, u, fmt.Sprintf("device-%d", i), "")
		require.NoError(t, err)
	}

	n, err := env.auth.RevokeAll(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	stats, err := env.tokens.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Active)
}

func TestAuthService_EnduserLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	credential, err := env.enduser.Encode("Sam")
	require.NoError(t, err)
	u, err := env.users.Create(ctx, &domain.User{
		Name:         strp("Sam"),
		Role:         domain.RoleEnduser,
		IsActive:     true,
		EnduserToken: &credential,
	})
	require.NoError(t, err)

	got, pair, err := env.auth.EnduserLogin(ctx, credential, "Sam")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, ok := env.codec.Verify(pair.AccessToken, token.TypeAccess)
	require.True(t, ok)
	assert.Equal(t, domain.RoleEnduser, claims.Role)

	refresh, ok := env.codec.Verify(pair.RefreshToken, token.TypeRefresh)
	require.True(t, ok)
	rec, err := env.tokens.GetByJTI(ctx, refresh.JTI)
	require.NoError(t, err)
	require.NotNil(t, rec.DeviceInfo)
	assert.Equal(t, deviceInfoEnduser, *rec.DeviceInfo)
}

func TestAuthService_EnduserLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	credential, err := env.enduser.Encode("Sam")
	require.NoError(t, err)
	_, err = env.users.Create(ctx, &domain.User{
		Name:         strp("Sam"),
		Role:         domain.RoleEnduser,
		IsActive:     true,
		EnduserToken: &credential,
	})
	require.NoError(t, err)

	var unauthorized *domain.UnauthorizedError

	// Wrong claimed name.
	_, _, err = env.auth.EnduserLogin(ctx, credential, "Mallory")
	require.ErrorAs(t, err, &unauthorized)

	// Well-formed credential with no matching user record.
	orphan, err := env.enduser.Encode("Nobody")
	require.NoError(t, err)
	_, _, err = env.auth.EnduserLogin(ctx, orphan, "Nobody")
	require.ErrorAs(t, err, &unauthorized)

	// Garbage credential.
	_, _, err = env.auth.EnduserLogin(ctx, "garbage", "Sam")
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_EnduserLoginRejectsInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	credential, err := env.enduser.Encode("Sam")
	require.NoError(t, err)
	_, err = env.users.Create(ctx, &domain.User{
		Name:         strp("Sam"),
		Role:         domain.RoleEnduser,
		IsActive:     false,
		EnduserToken: &credential,
	})
	require.NoError(t, err)

	_, _, err = env.auth.EnduserLogin(ctx, credential, "Sam")
	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_LoginWithGoogleCreatesUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	provider := &mockIdentityProvider{
		exchangeFn: func(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
			return &domain.ExternalIdentity{
				Email:      "new@example.com",
				Name:       "New User",
				ExternalID: "google-1",
				Picture:    "https://example.com/p.png",
			}, nil
		},
	}
	auth := NewAuthService(env.users, env.tokens, env.codec, env.enduser, provider, time.Minute, time.Hour, discardLogger())

	u, pair, err := auth.LoginWithGoogle(ctx, "code", "browser", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "google-1", *u.GoogleID)
	require.NotEmpty(t, pair.RefreshToken)

	// Second login with the same email reuses the account.
	again, _, err := auth.LoginWithGoogle(ctx, "code", "browser", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestAuthService_LoginWithGoogleUpdatesExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing := env.seedUser(t, "hr@example.com", domain.RoleHR)

	provider := &mockIdentityProvider{
		exchangeFn: func(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
			return &domain.ExternalIdentity{
				Email:      "hr@example.com",
				Name:       "Fresh Name",
				ExternalID: "google-2",
			}, nil
		},
	}
	auth := NewAuthService(env.users, env.tokens, env.codec, env.enduser, provider, time.Minute, time.Hour, discardLogger())

	u, _, err := auth.LoginWithGoogle(ctx, "code", "", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)
	// Role is preserved, profile fields are refreshed.
	assert.Equal(t, domain.RoleHR, u.Role)
	require.NotNil(t, u.Name)
	assert.Equal(t, "Fresh Name", *u.Name)

	// An account provisioned by email alone is linked to its provider
	// subject on first login.
	stored, err := env.users.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "google-2", *stored.GoogleID)
}

func TestAuthService_LoginWithGoogleFindsByProviderID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing, err := env.users.Create(ctx, &domain.User{
		Email:    strp("old@example.com"),
		GoogleID: strp("google-3"),
		Name:     strp("Old Name"),
		Role:     domain.RoleHR,
		IsActive: true,
	})
	require.NoError(t, err)

	// The provider subject is stable even when the email changes; the
	// login must resolve the same account instead of creating a second
	// one.
	provider := &mockIdentityProvider{
		exchangeFn: func(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
			return &domain.ExternalIdentity{
				Email:      "renamed@example.com",
				Name:       "Old Name",
				ExternalID: "google-3",
			}, nil
		},
	}
	auth := NewAuthService(env.users, env.tokens, env.codec, env.enduser, provider, time.Minute, time.Hour, discardLogger())

	u, _, err := auth.LoginWithGoogle(ctx, "code", "", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)

	_, total, err := env.users.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAuthService_LoginWithGoogleExchangeFailure(t *testing.T) {
	env := newTestEnv(t)

	provider := &mockIdentityProvider{
		exchangeFn: func(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
			return nil, fmt.Errorf("provider said no")
		},
	}
	auth := NewAuthService(env.users, env.tokens, env.codec, env.enduser, provider, time.Minute, time.Hour, discardLogger())

	_, _, err := auth.LoginWithGoogle(context.Background(), "bad-code", "", "")
	var unauthorized *domain.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestAuthService_GoogleNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	var validation *domain.ValidationError
	_, err := env.auth.GoogleAuthURL("state")
	require.ErrorAs(t, err, &validation)

	_, _, err = env.auth.LoginWithGoogle(context.Background(), "code", "", "")
	require.ErrorAs(t, err, &validation)
}

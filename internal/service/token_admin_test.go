package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpin/internal/domain"
	"qpin/internal/token"
)

func issueFor(t *testing.T, env *testEnv, u *domain.User) *domain.RefreshToken {
	t.Helper()
	pair, err := env.auth.IssueTokens(context.Background(), u, "", "")
	require.NoError(t, err)
	claims, ok := env.codec.Verify(pair.RefreshToken, token.TypeRefresh)
	require.True(t, ok)
	rec, err := env.tokens.GetByJTI(context.Background(), claims.JTI)
	require.NoError(t, err)
	return rec
}

func TestTokenAdminService_ListAndStatsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	hr := env.seedUser(t, "hr@example.com", domain.RoleHR)
	issueFor(t, env, admin)
	issueFor(t, env, hr)

	all, total, err := env.tokenAdmin.List(ctx, admin, false, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	stats, err := env.tokenAdmin.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Active)

	var denied *domain.AccessDeniedError
	_, _, err = env.tokenAdmin.List(ctx, hr, false, domain.PageRequest{})
	require.ErrorAs(t, err, &denied)
	_, err = env.tokenAdmin.Stats(ctx, hr)
	require.ErrorAs(t, err, &denied)
}

func TestTokenAdminService_ListMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice@example.com", domain.RoleHR)
	bob := env.seedUser(t, "bob@example.com", domain.RoleHR)
	issueFor(t, env, alice)
	issueFor(t, env, alice)
	issueFor(t, env, bob)

	mine, total, err := env.tokenAdmin.ListMine(ctx, alice, false, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, rec := range mine {
		assert.Equal(t, alice.ID, rec.UserID)
	}
}

func TestTokenAdminService_RevokeOwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	alice := env.seedUser(t, "alice@example.com", domain.RoleHR)
	bob := env.seedUser(t, "bob@example.com", domain.RoleHR)

	aliceRec := issueFor(t, env, alice)
	bobRec := issueFor(t, env, bob)

	// Owner revokes their own by id.
	require.NoError(t, env.tokenAdmin.RevokeByID(ctx, alice, aliceRec.ID))
	got, err := env.tokens.GetByJTI(ctx, aliceRec.JTI)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// A non-owner non-admin is refused.
	var denied *domain.AccessDeniedError
	err = env.tokenAdmin.RevokeByJTI(ctx, alice, bobRec.JTI)
	require.ErrorAs(t, err, &denied)

	// An admin may revoke anyone's.
	require.NoError(t, env.tokenAdmin.RevokeByJTI(ctx, admin, bobRec.JTI))

	var notFound *domain.NotFoundError
	err = env.tokenAdmin.RevokeByID(ctx, admin, 9999)
	require.ErrorAs(t, err, &notFound)
}

func TestTokenAdminService_RevokeAllMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice@example.com", domain.RoleHR)
	bob := env.seedUser(t, "bob@example.com", domain.RoleHR)
	issueFor(t, env, alice)
	issueFor(t, env, alice)
	bobRec := issueFor(t, env, bob)

	n, err := env.tokenAdmin.RevokeAllMine(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Bob's token is untouched.
	got, err := env.tokens.GetByJTI(ctx, bobRec.JTI)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestTokenAdminService_Cleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	hr := env.seedUser(t, "hr@example.com", domain.RoleHR)

	_, err := env.tokens.Create(ctx, &domain.RefreshToken{
		JTI:       "expired",
		UserID:    hr.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	issueFor(t, env, hr)

	var denied *domain.AccessDeniedError
	_, err = env.tokenAdmin.Cleanup(ctx, hr)
	require.ErrorAs(t, err, &denied)

	n, err := env.tokenAdmin.Cleanup(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qpin/internal/db"
	"qpin/internal/db/repository"
	"qpin/internal/domain"
	"qpin/internal/token"
)

const (
	testSecret     = "unit-test-secret"
	testIterations = 1000 // keep PBKDF2 cheap in tests
)

// testEnv bundles real SQLite-backed repositories and the services under
// test. Auth flows are exercised end to end against the store rather than
// against mocks; the few mock-based tests live next to the behavior they
// isolate.
type testEnv struct {
	users       *repository.UserRepo
	groups      *repository.GroupRepo
	tokens      *repository.RefreshTokenRepo
	assessments *repository.AssessmentRepo

	codec   *token.Codec
	enduser *token.EnduserEncoder

	authz          *Authorizer
	auth           *AuthService
	userService    *UserService
	groupService   *GroupService
	tokenAdmin     *TokenAdminService
	assessmentServ *AssessmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	writeDB, readDB := db.OpenTestSQLite(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := token.NewCodec(testSecret, "HS256")
	require.NoError(t, err)
	enduser, err := token.NewEnduserEncoder(testSecret, testIterations)
	require.NoError(t, err)

	env := &testEnv{
		users:       repository.NewUserRepo(writeDB, readDB),
		groups:      repository.NewGroupRepo(writeDB, readDB),
		tokens:      repository.NewRefreshTokenRepo(writeDB, readDB),
		assessments: repository.NewAssessmentRepo(writeDB, readDB),
		codec:       codec,
		enduser:     enduser,
	}
	env.authz = NewAuthorizer(env.groups)
	env.auth = NewAuthService(env.users, env.tokens, codec, enduser, nil, 30*time.Minute, 24*time.Hour, log)
	env.userService = NewUserService(env.users, env.groups, enduser, env.authz, log)
	env.groupService = NewGroupService(env.groups, env.users, env.authz, log)
	env.tokenAdmin = NewTokenAdminService(env.tokens, env.authz, log)
	env.assessmentServ = NewAssessmentService(env.assessments, env.authz, log)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), &domain.User{
		Email:    &email,
		Name:     strp("Seeded"),
		Role:     role,
		IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) seedGroup(t *testing.T, owner *domain.User, name string) *domain.Group {
	t.Helper()
	g, err := e.groups.Create(context.Background(), &domain.Group{
		Name:        name,
		IsActive:    true,
		CreatedByID: owner.ID,
	})
	require.NoError(t, err)
	return g
}

func (e *testEnv) seedMember(t *testing.T, u *domain.User, g *domain.Group, role domain.GroupRole) {
	t.Helper()
	_, err := e.groups.AddMember(context.Background(), &domain.GroupMember{
		UserID:  u.ID,
		GroupID: g.ID,
		Role:    role,
	})
	require.NoError(t, err)
}

func strp(s string) *string { return &s }

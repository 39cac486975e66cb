package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internaldb "qpin/internal/db"
	"qpin/internal/db/repository"
	"qpin/internal/domain"
	"qpin/internal/token"
)

func setupAuth(t *testing.T) (*token.Codec, *repository.UserRepo) {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	codec, err := token.NewCodec("unit-test-secret", "HS256")
	require.NoError(t, err)
	return codec, repository.NewUserRepo(writeDB, readDB)
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := domain.PrincipalFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(strconv.FormatInt(principal.ID, 10)))
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	codec, users := setupAuth(t)
	email := "admin@example.com"
	user, err := users.Create(context.Background(), &domain.User{Email: &email, Role: domain.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	access, err := codec.IssueAccess(strconv.FormatInt(user.ID, 10), domain.RoleAdmin, time.Minute)
	require.NoError(t, err)

	handler := Authenticate(codec, users)(protected(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, strconv.FormatInt(user.ID, 10), rec.Body.String())
}

func TestAuthenticate_Rejections(t *testing.T) {
	codec, users := setupAuth(t)
	handler := Authenticate(codec, users)(protected(t))

	cases := map[string]string{
		"no header":    "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"unknown user": "",
	}
	access, err := codec.IssueAccess("9999", domain.RoleAdmin, time.Minute)
	require.NoError(t, err)
	cases["unknown user"] = "Bearer " + access

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	codec, users := setupAuth(t)
	email := "user@example.com"
	user, err := users.Create(context.Background(), &domain.User{Email: &email, Role: domain.RoleHR, IsActive: true})
	require.NoError(t, err)

	refresh, _, err := codec.IssueRefresh(strconv.FormatInt(user.ID, 10), "some-jti", time.Hour)
	require.NoError(t, err)

	handler := Authenticate(codec, users)(protected(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_RejectsDeactivatedUser(t *testing.T) {
	codec, users := setupAuth(t)
	email := "gone@example.com"
	user, err := users.Create(context.Background(), &domain.User{Email: &email, Role: domain.RoleHR, IsActive: true})
	require.NoError(t, err)
	inactive := false
	_, err = users.Update(context.Background(), user.ID, domain.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)

	access, err := codec.IssueAccess(strconv.FormatInt(user.ID, 10), domain.RoleHR, time.Minute)
	require.NoError(t, err)

	handler := Authenticate(codec, users)(protected(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"qpin/internal/db"
	"qpin/internal/domain"
)

func openTestDB(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()
	return db.OpenTestSQLite(t)
}

func strp(s string) *string { return &s }

func mustCreateUser(t *testing.T, users *UserRepo, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := users.Create(context.Background(), &domain.User{
		Email:    strp(email),
		Name:     strp("Test User"),
		Role:     role,
		IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func mustCreateGroup(t *testing.T, groups *GroupRepo, ownerID int64, name string) *domain.Group {
	t.Helper()
	g, err := groups.Create(context.Background(), &domain.Group{
		Name:        name,
		IsActive:    true,
		CreatedByID: ownerID,
	})
	require.NoError(t, err)
	return g
}

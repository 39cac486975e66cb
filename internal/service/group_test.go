package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpin/internal/domain"
)

func TestGroupService_CreateAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	hr := env.seedUser(t, "hr@example.com", domain.RoleHR)

	g, err := env.groupService.Create(ctx, admin, domain.CreateGroupRequest{Name: "team", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, g.CreatedByID)
	assert.True(t, g.IsActive)

	var denied *domain.AccessDeniedError
	_, err = env.groupService.Create(ctx, hr, domain.CreateGroupRequest{Name: "nope"})
	require.ErrorAs(t, err, &denied)

	var validation *domain.ValidationError
	_, err = env.groupService.Create(ctx, admin, domain.CreateGroupRequest{})
	require.ErrorAs(t, err, &validation)
}

func TestGroupService_GetVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g := env.seedGroup(t, admin, "team")

	member := env.seedUser(t, "member@example.com", domain.RoleEnduser)
	env.seedMember(t, member, g, domain.GroupRoleMember)
	stranger := env.seedUser(t, "stranger@example.com", domain.RoleHR)

	_, err := env.groupService.Get(ctx, member, g.ID)
	require.NoError(t, err)

	var denied *domain.AccessDeniedError
	_, err = env.groupService.Get(ctx, stranger, g.ID)
	require.ErrorAs(t, err, &denied)

	var notFound *domain.NotFoundError
	_, err = env.groupService.Get(ctx, admin, 9999)
	require.ErrorAs(t, err, &notFound)
}

func TestGroupService_ListScopedToMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g1 := env.seedGroup(t, admin, "one")
	env.seedGroup(t, admin, "two")

	member := env.seedUser(t, "member@example.com", domain.RoleEnduser)
	env.seedMember(t, member, g1, domain.GroupRoleMember)

	all, total, err := env.groupService.List(ctx, admin, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	mine, total, err := env.groupService.List(ctx, member, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, g1.ID, mine[0].ID)
}

func TestGroupService_UpdateRequiresGroupAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g := env.seedGroup(t, admin, "team")

	lead := env.seedUser(t, "lead@example.com", domain.RoleHR)
	env.seedMember(t, lead, g, domain.GroupRoleAdmin)
	member := env.seedUser(t, "member@example.com", domain.RoleEnduser)
	env.seedMember(t, member, g, domain.GroupRoleMember)

	got, err := env.groupService.Update(ctx, lead, g.ID, domain.UpdateGroupRequest{Name: strp("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	var denied *domain.AccessDeniedError
	_, err = env.groupService.Update(ctx, member, g.ID, domain.UpdateGroupRequest{Name: strp("x")})
	require.ErrorAs(t, err, &denied)
}

func TestGroupService_DeleteAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g := env.seedGroup(t, admin, "team")
	lead := env.seedUser(t, "lead@example.com", domain.RoleHR)
	env.seedMember(t, lead, g, domain.GroupRoleAdmin)

	// Even a group admin cannot delete; only a global admin can.
	var denied *domain.AccessDeniedError
	err := env.groupService.Delete(ctx, lead, g.ID)
	require.ErrorAs(t, err, &denied)

	require.NoError(t, env.groupService.Delete(ctx, admin, g.ID))
}

func TestGroupService_Membership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g := env.seedGroup(t, admin, "team")
	lead := env.seedUser(t, "lead@example.com", domain.RoleHR)
	env.seedMember(t, lead, g, domain.GroupRoleAdmin)
	u := env.seedUser(t, "new@example.com", domain.RoleEnduser)

	m, err := env.groupService.AddMember(ctx, lead, g.ID, u.ID, domain.GroupRoleMember)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupRoleMember, m.Role)

	var validation *domain.ValidationError
	_, err = env.groupService.AddMember(ctx, lead, g.ID, u.ID, domain.GroupRole("OWNER"))
	require.ErrorAs(t, err, &validation)

	var conflict *domain.ConflictError
	_, err = env.groupService.AddMember(ctx, lead, g.ID, u.ID, domain.GroupRoleMember)
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, env.groupService.SetMemberRole(ctx, lead, g.ID, u.ID, domain.GroupRoleAdmin))

	members, err := env.groupService.ListMembers(ctx, lead, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	var denied *domain.AccessDeniedError
	stranger := env.seedUser(t, "stranger@example.com", domain.RoleEnduser)
	_, err = env.groupService.AddMember(ctx, stranger, g.ID, stranger.ID, domain.GroupRoleMember)
	require.ErrorAs(t, err, &denied)
}

func TestGroupService_RemoveMemberSelfOrGroupAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com", domain.RoleAdmin)
	g := env.seedGroup(t, admin, "team")
	lead := env.seedUser(t, "lead@example.com", domain.RoleHR)
	env.seedMember(t, lead, g, domain.GroupRoleAdmin)
	a := env.seedUser(t, "a@example.com", domain.RoleEnduser)
	b := env.seedUser(t, "b@example.com", domain.RoleEnduser)
	env.seedMember(t, a, g, domain.GroupRoleMember)
	env.seedMember(t, b, g, domain.GroupRoleMember)

	// A plain member cannot remove someone else.
	var denied *domain.AccessDeniedError
	err := env.groupService.RemoveMember(ctx, a, g.ID, b.ID)
	require.ErrorAs(t, err, &denied)

	// But can leave on their own.
	require.NoError(t, env.groupService.RemoveMember(ctx, a, g.ID, a.ID))

	// And the group admin can remove anyone.
	require.NoError(t, env.groupService.RemoveMember(ctx, lead, g.ID, b.ID))
}

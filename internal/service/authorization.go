// Package service implements the application services sitting between the
// HTTP surface and the repositories.
package service

import (
	"context"
	"errors"

	"qpin/internal/domain"
)

// Authorizer answers permission questions about an authenticated user.
// A global ADMIN passes every check unconditionally; every group-scoped
// guard short-circuits on it before touching the membership table.
type Authorizer struct {
	groups domain.GroupRepository
}

// NewAuthorizer creates an Authorizer backed by the membership store.
func NewAuthorizer(groups domain.GroupRepository) *Authorizer {
	return &Authorizer{groups: groups}
}

// IsGroupMember reports whether the user belongs to the group in any role.
func (a *Authorizer) IsGroupMember(ctx context.Context, u *domain.User, groupID int64) (bool, error) {
	if u.Role == domain.RoleAdmin {
		return true, nil
	}
	_, err := a.groups.GetMember(ctx, groupID, u.ID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsGroupAdmin reports whether the user administers the group.
func (a *Authorizer) IsGroupAdmin(ctx context.Context, u *domain.User, groupID int64) (bool, error) {
	if u.Role == domain.RoleAdmin {
		return true, nil
	}
	m, err := a.groups.GetMember(ctx, groupID, u.ID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return m.Role == domain.GroupRoleAdmin, nil
}

// RequireRole fails with AccessDenied unless the user's global role is one
// of the allowed set.
func (a *Authorizer) RequireRole(u *domain.User, allowed ...domain.Role) error {
	for _, r := range allowed {
		if u.Role == r {
			return nil
		}
	}
	return domain.ErrAccessDenied("requires one of roles %v", allowed)
}

// RequireGroupMember fails with AccessDenied unless the user belongs to
// the group or is a global admin.
func (a *Authorizer) RequireGroupMember(ctx context.Context, u *domain.User, groupID int64) error {
	ok, err := a.IsGroupMember(ctx, u, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccessDenied("not a member of group %d", groupID)
	}
	return nil
}

// RequireGroupAdmin fails with AccessDenied unless the user administers
// the group or is a global admin.
func (a *Authorizer) RequireGroupAdmin(ctx context.Context, u *domain.User, groupID int64) error {
	ok, err := a.IsGroupAdmin(ctx, u, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccessDenied("not an admin of group %d", groupID)
	}
	return nil
}

// RequireSelfOrAdmin fails with AccessDenied unless the user is acting on
// their own account or is a global admin.
func (a *Authorizer) RequireSelfOrAdmin(u *domain.User, targetUserID int64) error {
	if u.Role == domain.RoleAdmin || u.ID == targetUserID {
		return nil
	}
	return domain.ErrAccessDenied("not allowed to act on user %d", targetUserID)
}

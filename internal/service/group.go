package service

import (
	"context"
	"log/slog"

	"qpin/internal/domain"
)

// GroupService implements group and membership management.
type GroupService struct {
	groups domain.GroupRepository
	users  domain.UserRepository
	authz  *Authorizer
	log    *slog.Logger
}

// NewGroupService wires the group service.
func NewGroupService(groups domain.GroupRepository, users domain.UserRepository, authz *Authorizer, log *slog.Logger) *GroupService {
	return &GroupService{
		groups: groups,
		users:  users,
		authz:  authz,
		log:    log.With("component", "groups"),
	}
}

// Create makes a new group owned by the actor. Admin only.
func (s *GroupService) Create(ctx context.Context, actor *domain.User, req domain.CreateGroupRequest) (*domain.Group, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	g, err := s.groups.Create(ctx, &domain.Group{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		CreatedByID: actor.ID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("created group", "group_id", g.ID, "actor_id", actor.ID)
	return g, nil
}

// Get returns a group. Members and global admins only.
func (s *GroupService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupMember(ctx, actor, id); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns the groups visible to the actor: all of them for a global
// admin, otherwise only the actor's own groups.
func (s *GroupService) List(ctx context.Context, actor *domain.User, page domain.PageRequest) ([]domain.Group, int64, error) {
	if actor.Role == domain.RoleAdmin {
		return s.groups.List(ctx, page)
	}
	mine, err := s.groups.ListGroupsForUser(ctx, actor.ID)
	if err != nil {
		return nil, 0, err
	}
	return mine, int64(len(mine)), nil
}

// Update applies a partial update. Group admins and global admins only.
func (s *GroupService) Update(ctx context.Context, actor *domain.User, id int64, req domain.UpdateGroupRequest) (*domain.Group, error) {
	if _, err := s.groups.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.groups.Update(ctx, id, req)
}

// Delete removes a group. Global admin only.
func (s *GroupService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("deleted group", "group_id", id, "actor_id", actor.ID)
	return nil
}

// ListMembers returns a group's membership rows. Members and global
// admins only.
func (s *GroupService) ListMembers(ctx context.Context, actor *domain.User, groupID int64) ([]domain.GroupMember, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupMember(ctx, actor, groupID); err != nil {
		return nil, err
	}
	return s.groups.ListMembers(ctx, groupID)
}

// AddMember adds a user to a group. Group admins and global admins only.
func (s *GroupService) AddMember(ctx context.Context, actor *domain.User, groupID, userID int64, role domain.GroupRole) (*domain.GroupMember, error) {
	if !role.Valid() {
		return nil, domain.ErrValidation("unknown group role %q", string(role))
	}
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, groupID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.groups.AddMember(ctx, &domain.GroupMember{
		UserID:  userID,
		GroupID: groupID,
		Role:    role,
	})
}

// SetMemberRole changes a membership's per-group role. Group admins and
// global admins only.
func (s *GroupService) SetMemberRole(ctx context.Context, actor *domain.User, groupID, userID int64, role domain.GroupRole) error {
	if !role.Valid() {
		return domain.ErrValidation("unknown group role %q", string(role))
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, groupID); err != nil {
		return err
	}
	return s.groups.SetMemberRole(ctx, groupID, userID, role)
}

// RemoveMember removes a user from a group. Group admins may remove
// anyone; a member may remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, actor *domain.User, groupID, userID int64) error {
	if actor.ID != userID {
		if err := s.authz.RequireGroupAdmin(ctx, actor, groupID); err != nil {
			return err
		}
	}
	return s.groups.RemoveMember(ctx, groupID, userID)
}

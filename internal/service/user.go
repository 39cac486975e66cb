package service

import (
	"context"
	"errors"
	"log/slog"

	"qpin/internal/domain"
	"qpin/internal/token"
)

// UserService implements account management: HR and enduser provisioning,
// lookup, update, and removal.
type UserService struct {
	users   domain.UserRepository
	groups  domain.GroupRepository
	enduser *token.EnduserEncoder
	authz   *Authorizer
	log     *slog.Logger
}

// NewUserService wires the user service.
func NewUserService(
	users domain.UserRepository,
	groups domain.GroupRepository,
	enduser *token.EnduserEncoder,
	authz *Authorizer,
	log *slog.Logger,
) *UserService {
	return &UserService{
		users:   users,
		groups:  groups,
		enduser: enduser,
		authz:   authz,
		log:     log.With("component", "users"),
	}
}

// CreateHR provisions an HR account and makes it an admin of the target
// group. Admin only. The account has no credentials yet; the HR signs in
// through the identity provider with the given email.
func (s *UserService) CreateHR(ctx context.Context, actor *domain.User, req domain.CreateHRRequest) (*domain.User, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.groups.GetByID(ctx, req.GroupID); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, domain.ErrConflict("user with email %q already exists", req.Email)
	} else {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	u, err := s.users.Create(ctx, &domain.User{
		Email:    &req.Email,
		Role:     domain.RoleHR,
		IsActive: true,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.groups.AddMember(ctx, &domain.GroupMember{
		UserID:  u.ID,
		GroupID: req.GroupID,
		Role:    domain.GroupRoleAdmin,
	}); err != nil {
		return nil, err
	}

	s.log.Info("created hr user", "user_id", u.ID, "group_id", req.GroupID, "actor_id", actor.ID)
	return u, nil
}

// CreateEnduser provisions an enduser, mints their self-contained token,
// and adds them to the target group as a member. Admins may target any
// group; HR only groups they administer.
func (s *UserService) CreateEnduser(ctx context.Context, actor *domain.User, req domain.CreateEnduserRequest) (*domain.User, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin, domain.RoleHR); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.groups.GetByID(ctx, req.GroupID); err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleHR {
		if err := s.authz.RequireGroupAdmin(ctx, actor, req.GroupID); err != nil {
			return nil, err
		}
	}

	credential, err := s.enduser.Encode(req.Name)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, &domain.User{
		Name:         &req.Name,
		Role:         domain.RoleEnduser,
		IsActive:     true,
		EnduserToken: &credential,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.groups.AddMember(ctx, &domain.GroupMember{
		UserID:  u.ID,
		GroupID: req.GroupID,
		Role:    domain.GroupRoleMember,
	}); err != nil {
		return nil, err
	}

	s.log.Info("created enduser", "user_id", u.ID, "group_id", req.GroupID, "actor_id", actor.ID)
	return u, nil
}

// Get returns a user. Self or admin.
func (s *UserService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.User, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// List returns a page of users, optionally filtered by role. Admin only.
func (s *UserService) List(ctx context.Context, actor *domain.User, role *domain.Role, page domain.PageRequest) ([]domain.User, int64, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, 0, err
	}
	if role != nil {
		if !role.Valid() {
			return nil, 0, domain.ErrValidation("unknown role %q", string(*role))
		}
		return s.users.ListByRole(ctx, *role, page)
	}
	return s.users.List(ctx, page)
}

// Update applies a partial update to a user. Self or admin.
func (s *UserService) Update(ctx context.Context, actor *domain.User, id int64, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	// Only admins may activate or deactivate accounts.
	if req.IsActive != nil && actor.Role != domain.RoleAdmin {
		return nil, domain.ErrAccessDenied("only admins can change account status")
	}
	return s.users.Update(ctx, id, req)
}

// Delete removes a user. Admin only.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("deleted user", "user_id", id, "actor_id", actor.ID)
	return nil
}

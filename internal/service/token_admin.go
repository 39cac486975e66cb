package service

import (
	"context"
	"log/slog"
	"time"

	"qpin/internal/domain"
)

// TokenAdminService exposes the refresh-token store's administrative
// surface: listing, stats, targeted revocation, and the expiry sweep.
type TokenAdminService struct {
	tokens domain.RefreshTokenRepository
	authz  *Authorizer
	log    *slog.Logger
	now    func() time.Time
}

// NewTokenAdminService wires the token admin service.
func NewTokenAdminService(tokens domain.RefreshTokenRepository, authz *Authorizer, log *slog.Logger) *TokenAdminService {
	return &TokenAdminService{
		tokens: tokens,
		authz:  authz,
		log:    log.With("component", "token_admin"),
		now:    time.Now,
	}
}

// List returns a page of all refresh records. Admin only.
func (s *TokenAdminService) List(ctx context.Context, actor *domain.User, activeOnly bool, page domain.PageRequest) ([]domain.RefreshToken, int64, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, 0, err
	}
	return s.tokens.List(ctx, activeOnly, page)
}

// ListMine returns a page of the actor's own refresh records.
func (s *TokenAdminService) ListMine(ctx context.Context, actor *domain.User, activeOnly bool, page domain.PageRequest) ([]domain.RefreshToken, int64, error) {
	return s.tokens.ListByUser(ctx, actor.ID, activeOnly, page)
}

// Stats summarises the refresh-token table. Admin only.
func (s *TokenAdminService) Stats(ctx context.Context, actor *domain.User) (*domain.TokenStats, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.tokens.Stats(ctx)
}

// RevokeByID revokes one record by primary key. Owner or admin.
func (s *TokenAdminService) RevokeByID(ctx context.Context, actor *domain.User, tokenID int64) error {
	rec, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	return s.revoke(ctx, actor, rec)
}

// RevokeByJTI revokes one record by its unique identifier. Owner or admin.
func (s *TokenAdminService) RevokeByJTI(ctx context.Context, actor *domain.User, jti string) error {
	rec, err := s.tokens.GetByJTI(ctx, jti)
	if err != nil {
		return err
	}
	return s.revoke(ctx, actor, rec)
}

func (s *TokenAdminService) revoke(ctx context.Context, actor *domain.User, rec *domain.RefreshToken) error {
	if err := s.authz.RequireSelfOrAdmin(actor, rec.UserID); err != nil {
		return err
	}
	if _, err := s.tokens.Revoke(ctx, rec.JTI); err != nil {
		return err
	}
	s.log.Info("revoked refresh token", "jti", rec.JTI, "owner_id", rec.UserID, "actor_id", actor.ID)
	return nil
}

// RevokeAllMine revokes every active record the actor owns and returns
// the count.
func (s *TokenAdminService) RevokeAllMine(ctx context.Context, actor *domain.User) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	s.log.Info("revoked all own tokens", "user_id", actor.ID, "count", n)
	return n, nil
}

// Cleanup deactivates every active record whose expiry has passed and
// returns the count. Admin only. The same sweep runs on the background
// schedule when configured.
func (s *TokenAdminService) Cleanup(ctx context.Context, actor *domain.User) (int64, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return 0, err
	}
	return s.Sweep(ctx)
}

// Sweep runs the expiry sweep without an authorization check. Callers are
// the admin endpoint (after its check) and the background scheduler.
func (s *TokenAdminService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.tokens.CleanupExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("deactivated expired refresh tokens", "count", n)
	}
	return n, nil
}

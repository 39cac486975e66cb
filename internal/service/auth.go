package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"qpin/internal/domain"
	"qpin/internal/token"
)

// jtiAttempts bounds the identifier generation loop. With random UUIDs a
// collision is effectively impossible, so repeated conflicts indicate a
// broken randomness source and must stop the issuance, not loop forever.
const jtiAttempts = 3

// deviceInfoEnduser marks refresh records minted through the enduser flow.
const deviceInfoEnduser = "enduser_login"

// TokenPair is the result of a successful login or issuance.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService implements login, token issuance, refresh, and revocation.
type AuthService struct {
	users    domain.UserRepository
	tokens   domain.RefreshTokenRepository
	codec    *token.Codec
	enduser  *token.EnduserEncoder
	provider domain.IdentityProvider // nil when the OAuth flow is not configured

	accessTTL  time.Duration
	refreshTTL time.Duration

	log *slog.Logger
	now func() time.Time
}

// NewAuthService wires the auth service. provider may be nil; the Google
// login operations then fail with a validation error.
func NewAuthService(
	users domain.UserRepository,
	tokens domain.RefreshTokenRepository,
	codec *token.Codec,
	enduser *token.EnduserEncoder,
	provider domain.IdentityProvider,
	accessTTL, refreshTTL time.Duration,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		codec:      codec,
		enduser:    enduser,
		provider:   provider,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log.With("component", "auth"),
		now:        time.Now,
	}
}

// GoogleAuthURL returns the provider consent URL for the given CSRF state.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.provider == nil {
		return "", domain.ErrValidation("google login is not configured")
	}
	return s.provider.AuthURL(state), nil
}

// LoginWithGoogle redeems the authorization code, upserts the user by
// email, and issues a token pair. A previously unseen identity gets a
// fresh ADMIN account; a known one has its name, picture, and provider id
// refreshed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, code, deviceInfo, ipAddress string) (*domain.User, *TokenPair, error) {
	if s.provider == nil {
		return nil, nil, domain.ErrValidation("google login is not configured")
	}
	ident, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("google code exchange failed", "error", err)
		return nil, nil, domain.ErrUnauthorized("authentication failed")
	}

	u, err := s.upsertGoogleUser(ctx, ident)
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, domain.ErrUnauthorized("authentication failed")
	}

	pair, err := s.IssueTokens(ctx, u, deviceInfo, ipAddress)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("google login", "user_id", u.ID, "role", u.Role)
	return u, pair, nil
}

func (s *AuthService) upsertGoogleUser(ctx context.Context, ident *domain.ExternalIdentity) (*domain.User, error) {
	u, err := s.findGoogleUser(ctx, ident)
	if err != nil {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return s.users.Create(ctx, &domain.User{
			Email:    &ident.Email,
			GoogleID: &ident.ExternalID,
			Name:     &ident.Name,
			Picture:  nilIfEmpty(ident.Picture),
			Role:     domain.RoleAdmin,
			IsActive: true,
		})
	}

	req := domain.UpdateUserRequest{
		Name:     &ident.Name,
		GoogleID: &ident.ExternalID,
	}
	if ident.Picture != "" {
		req.Picture = &ident.Picture
	}
	return s.users.Update(ctx, u.ID, req)
}

// findGoogleUser resolves an external identity to a stored user, by the
// provider's stable subject first and the email second. The email fallback
// links accounts that were provisioned before their first Google login.
func (s *AuthService) findGoogleUser(ctx context.Context, ident *domain.ExternalIdentity) (*domain.User, error) {
	u, err := s.users.GetByGoogleID(ctx, ident.ExternalID)
	if err == nil {
		return u, nil
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	return s.users.GetByEmail(ctx, ident.Email)
}

// IssueTokens signs an access token and mints a refresh credential backed
// by a store record. The jti generation is retried a bounded number of
// times on collision; exhaustion is an internal failure, never a success.
func (s *AuthService) IssueTokens(ctx context.Context, u *domain.User, deviceInfo, ipAddress string) (*TokenPair, error) {
	subject := strconv.FormatInt(u.ID, 10)

	access, err := s.codec.IssueAccess(subject, u.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= jtiAttempts; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		jti := id.String()

		// Cheap pre-check before signing; Create still catches the race
		// between check and insert through the UNIQUE constraint.
		exists, err := s.tokens.ExistsByJTI(ctx, jti)
		if err != nil {
			return nil, err
		}
		if exists {
			s.log.Warn("jti collision, retrying", "attempt", attempt)
			continue
		}

		refresh, expiresAt, err := s.codec.IssueRefresh(subject, jti, s.refreshTTL)
		if err != nil {
			return nil, err
		}

		_, err = s.tokens.Create(ctx, &domain.RefreshToken{
			JTI:        jti,
			UserID:     u.ID,
			ExpiresAt:  expiresAt,
			DeviceInfo: nilIfEmpty(deviceInfo),
			IPAddress:  nilIfEmpty(ipAddress),
		})
		if err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				s.log.Warn("jti collision, retrying", "attempt", attempt)
				continue
			}
			return nil, err
		}

		return &TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			RefreshExpiresAt: expiresAt,
		}, nil
	}

	return nil, domain.ErrInternal("exhausted %d attempts to generate a unique token identifier", jtiAttempts)
}

// Refresh exchanges a valid refresh credential for a new access token. The
// credential must verify cryptographically and its store record must be
// active and unexpired. All failures collapse into Unauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshCredential string) (string, error) {
	claims, ok := s.codec.Verify(refreshCredential, token.TypeRefresh)
	if !ok {
		return "", domain.ErrUnauthorized("invalid refresh token")
	}

	if _, err := s.tokens.Validate(ctx, claims.JTI, s.now()); err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return "", domain.ErrUnauthorized("invalid refresh token")
		}
		return "", err
	}

	u, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", domain.ErrUnauthorized("invalid refresh token")
	}

	// Role is re-read from the store, not copied from the old token, so a
	// role change takes effect at the next refresh.
	return s.codec.IssueAccess(claims.Subject, u.Role, s.accessTTL)
}

// Logout revokes the refresh credential's store record. A credential that
// fails verification is ignored; logout never errors on bad input.
func (s *AuthService) Logout(ctx context.Context, refreshCredential string) error {
	claims, ok := s.codec.Verify(refreshCredential, token.TypeRefresh)
	if !ok {
		return nil
	}
	revoked, err := s.tokens.Revoke(ctx, claims.JTI)
	if err != nil {
		return err
	}
	if revoked {
		s.log.Info("logout", "jti", claims.JTI)
	}
	return nil
}

// RevokeAll flips every active refresh record owned by the user and
// returns how many were revoked.
func (s *AuthService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info("revoked all refresh tokens", "user_id", userID, "count", n)
	return n, nil
}

// EnduserLogin authenticates with the self-contained enduser token plus
// the claimed display name, then issues a token pair. The credential must
// decrypt, embed the claimed name, match a stored user record, and that
// record's name must equal the claim.
func (s *AuthService) EnduserLogin(ctx context.Context, credential, name string) (*domain.User, *TokenPair, error) {
	if !s.enduser.Matches(credential, name) {
		return nil, nil, domain.ErrUnauthorized("invalid token or name")
	}

	u, err := s.users.GetByEnduserToken(ctx, credential)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil, domain.ErrUnauthorized("invalid token or name")
		}
		return nil, nil, err
	}
	if !u.IsActive || u.Name == nil || *u.Name != name {
		return nil, nil, domain.ErrUnauthorized("invalid token or name")
	}

	pair, err := s.IssueTokens(ctx, u, deviceInfoEnduser, "")
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("enduser login", "user_id", u.ID)
	return u, pair, nil
}

// userFromSubject resolves the token subject to a stored user. Subjects
// are issued as decimal user ids; anything else is an invalid credential.
func (s *AuthService) userFromSubject(ctx context.Context, subject string) (*domain.User, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid token subject")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, domain.ErrUnauthorized("invalid token subject")
		}
		return nil, err
	}
	return u, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

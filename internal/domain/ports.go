package domain

import (
	"context"
	"time"
)

// UserRepository provides CRUD operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	GetByEnduserToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context, page PageRequest) ([]User, int64, error)
	ListByRole(ctx context.Context, role Role, page PageRequest) ([]User, int64, error)
	Update(ctx context.Context, id int64, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id int64) error
	SetRole(ctx context.Context, id int64, role Role) error
}

// GroupRepository provides CRUD operations for groups and membership rows.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context, page PageRequest) ([]Group, int64, error)
	Update(ctx context.Context, id int64, req UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id int64) error

	AddMember(ctx context.Context, m *GroupMember) (*GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
	SetMemberRole(ctx context.Context, groupID, userID int64, role GroupRole) error
	GetMember(ctx context.Context, groupID, userID int64) (*GroupMember, error)
	ListMembers(ctx context.Context, groupID int64) ([]GroupMember, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]Group, error)
}

// RefreshTokenRepository persists refresh-credential records. Every write
// path only ever flips IsActive from true to false, so concurrent
// validate/revoke/cleanup calls converge without extra locking.
type RefreshTokenRepository interface {
	// Create persists a new active record. A JTI collision surfaces as a
	// ConflictError; the caller's generation loop treats it as a signal
	// to retry, never as success.
	Create(ctx context.Context, t *RefreshToken) (*RefreshToken, error)
	GetByID(ctx context.Context, id int64) (*RefreshToken, error)
	GetByJTI(ctx context.Context, jti string) (*RefreshToken, error)
	ExistsByJTI(ctx context.Context, jti string) (bool, error)
	// Validate fetches by JTI and returns the record only when it is
	// active and unexpired. An active-but-expired record is deactivated
	// in place (side-effecting read) before NotFound is returned.
	Validate(ctx context.Context, jti string, now time.Time) (*RefreshToken, error)
	// Revoke sets IsActive=false; idempotent, reports whether a row matched.
	Revoke(ctx context.Context, jti string) (bool, error)
	// RevokeAllForUser flips every active record owned by the user and
	// returns how many were flipped.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	// CleanupExpired deactivates every active record whose expiry has
	// passed and returns the count.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, activeOnly bool, page PageRequest) ([]RefreshToken, int64, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool, page PageRequest) ([]RefreshToken, int64, error)
	Stats(ctx context.Context) (*TokenStats, error)
}

// AssessmentRepository provides CRUD operations for assessments and sessions.
type AssessmentRepository interface {
	Create(ctx context.Context, a *Assessment) (*Assessment, error)
	GetByID(ctx context.Context, id int64) (*Assessment, error)
	ListByGroup(ctx context.Context, groupID int64, page PageRequest) ([]Assessment, int64, error)
	List(ctx context.Context, page PageRequest) ([]Assessment, int64, error)
	Update(ctx context.Context, id int64, req UpdateAssessmentRequest) (*Assessment, error)
	Delete(ctx context.Context, id int64) error

	CreateSession(ctx context.Context, s *AssessmentSession) (*AssessmentSession, error)
	GetSession(ctx context.Context, id int64) (*AssessmentSession, error)
	SessionExists(ctx context.Context, assessmentID, userID int64) (bool, error)
	ListSessions(ctx context.Context, assessmentID int64, page PageRequest) ([]AssessmentSession, int64, error)
	ListSessionsByUser(ctx context.Context, userID int64, page PageRequest) ([]AssessmentSession, int64, error)
	SetSessionStatus(ctx context.Context, id int64, status SessionStatus, at time.Time) error
	Stats(ctx context.Context, assessmentID int64) (*AssessmentStats, error)
}

// IdentityProvider abstracts the OAuth authorization-code exchange. Only
// the verified identity tuple crosses this boundary.
type IdentityProvider interface {
	// AuthURL builds the provider consent URL for the given CSRF state.
	AuthURL(state string) string
	// Exchange redeems an authorization code for a verified identity.
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

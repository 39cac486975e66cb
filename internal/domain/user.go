package domain

import "time"

// Role is the global role assigned to every user. The set is closed;
// authorization decisions switch over it exhaustively.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleHR      Role = "HR"
	RoleEnduser Role = "ENDUSER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleEnduser:
		return true
	}
	return false
}

// ParseRole converts a stored string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrValidation("unknown role %q", s)
	}
	return r, nil
}

// User represents an account on the platform. Admins and HR users sign in
// through the external identity provider and carry durable identity
// attributes; endusers carry only a name and an encrypted enduser token.
type User struct {
	ID           int64
	Email        *string
	GoogleID     *string
	Picture      *string
	Name         *string
	Role         Role
	IsActive     bool
	EnduserToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the user's name, falling back to email.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if u.Email != nil {
		return *u.Email
	}
	return ""
}

// ExternalIdentity is the verified output of the OAuth authorization-code
// exchange. The exchange itself happens in the identity-provider
// collaborator; this core only consumes the resulting tuple.
type ExternalIdentity struct {
	Email      string
	Name       string
	ExternalID string
	Picture    string
}

// CreateHRRequest holds parameters for an admin creating an HR account.
type CreateHRRequest struct {
	Email   string
	GroupID int64
}

// Validate checks that the request is well-formed.
func (r *CreateHRRequest) Validate() error {
	if r.Email == "" {
		return ErrValidation("email is required")
	}
	if r.GroupID <= 0 {
		return ErrValidation("group_id is required")
	}
	return nil
}

// CreateEnduserRequest holds parameters for creating an enduser account.
type CreateEnduserRequest struct {
	Name    string
	GroupID int64
}

// Validate checks that the request is well-formed.
func (r *CreateEnduserRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if r.GroupID <= 0 {
		return ErrValidation("group_id is required")
	}
	return nil
}

// UpdateUserRequest holds optional fields for a user update. Nil fields
// are left untouched. GoogleID is refreshed by the login flow only and is
// never exposed through the API update surface.
type UpdateUserRequest struct {
	Name     *string
	Picture  *string
	GoogleID *string
	IsActive *bool
}

package domain

import "time"

// GroupRole is the per-group role of a membership row.
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "ADMIN"
	GroupRoleMember GroupRole = "MEMBER"
)

// Valid reports whether r is one of the known group roles.
func (r GroupRole) Valid() bool {
	return r == GroupRoleAdmin || r == GroupRoleMember
}

// Group represents a named collection of users.
type Group struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	CreatedByID int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GroupMember links a user to a group with a per-group role.
// (UserID, GroupID) is unique across all rows.
type GroupMember struct {
	ID        int64
	UserID    int64
	GroupID   int64
	Role      GroupRole
	CreatedAt time.Time
}

// CreateGroupRequest holds parameters for creating a new group.
type CreateGroupRequest struct {
	Name        string
	Description string
}

// Validate checks that the request is well-formed.
func (r *CreateGroupRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("group name is required")
	}
	return nil
}

// UpdateGroupRequest holds optional fields for a group update.
type UpdateGroupRequest struct {
	Name        *string
	Description *string
}

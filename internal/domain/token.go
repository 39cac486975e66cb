package domain

import "time"

// RefreshToken is the persistent record backing one issued refresh
// credential. JTI is globally unique, enforced by the store at creation.
// IsActive only ever transitions true to false: explicit revoke, bulk
// revoke, or lazily-detected expiry. No path reactivates a record.
type RefreshToken struct {
	ID         int64
	JTI        string
	UserID     int64
	ExpiresAt  time.Time
	IsActive   bool
	DeviceInfo *string
	IPAddress  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the record's expiry has passed at t.
func (rt *RefreshToken) Expired(t time.Time) bool {
	return !rt.ExpiresAt.After(t)
}

// TokenStats summarises the refresh-token table for the admin surface.
type TokenStats struct {
	Total    int64
	Active   int64
	Inactive int64
}

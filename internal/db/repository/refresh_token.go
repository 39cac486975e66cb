package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"qpin/internal/domain"
)

// RefreshTokenRepo implements domain.RefreshTokenRepository. All mutations
// flip is_active from 1 to 0 and never back, so concurrent revoke,
// validate, and cleanup calls on overlapping records converge to the same
// state without locking.
type RefreshTokenRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewRefreshTokenRepo creates a new RefreshTokenRepo.
func NewRefreshTokenRepo(write, read *sql.DB) *RefreshTokenRepo {
	return &RefreshTokenRepo{write: write, read: read}
}

const refreshTokenCols = `id, jti, user_id, expires_at, is_active, device_info, ip_address, created_at, updated_at`

func scanRefreshToken(row interface{ Scan(...any) error }) (*domain.RefreshToken, error) {
	var (
		t      domain.RefreshToken
		active int64
		device sql.NullString
		ip     sql.NullString
	)
	err := row.Scan(&t.ID, &t.JTI, &t.UserID, &t.ExpiresAt, &active, &device, &ip, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	t.DeviceInfo = strPtr(device)
	t.IPAddress = strPtr(ip)
	return &t, nil
}

// Create persists a new active record. A duplicate jti violates the UNIQUE
// constraint and surfaces as a ConflictError; the caller's generation
// loop must treat that as a retry signal, never as success.
func (r *RefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) (*domain.RefreshToken, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, expires_at, is_active, device_info, ip_address)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		t.JTI, t.UserID, t.ExpiresAt.UTC(), nullStr(t.DeviceInfo), nullStr(t.IPAddress))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a record by primary key.
func (r *RefreshTokenRepo) GetByID(ctx context.Context, id int64) (*domain.RefreshToken, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT `+refreshTokenCols+` FROM refresh_tokens WHERE id = ?`, id)
	t, err := scanRefreshToken(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return t, nil
}

// GetByJTI fetches a record by its unique identifier regardless of state.
func (r *RefreshTokenRepo) GetByJTI(ctx context.Context, jti string) (*domain.RefreshToken, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT `+refreshTokenCols+` FROM refresh_tokens WHERE jti = ?`, jti)
	t, err := scanRefreshToken(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return t, nil
}

// ExistsByJTI reports whether any record carries the given identifier.
func (r *RefreshTokenRepo) ExistsByJTI(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Validate returns the record only when it is active and unexpired. An
// active record whose expiry has passed is deactivated in place before
// NotFound is returned, a deliberate side-effecting read; records that
// are never validated again are left to CleanupExpired.
func (r *RefreshTokenRepo) Validate(ctx context.Context, jti string, now time.Time) (*domain.RefreshToken, error) {
	t, err := r.GetByJTI(ctx, jti)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, domain.ErrNotFound("refresh token %q is not active", jti)
	}
	if t.Expired(now) {
		if _, err := r.Revoke(ctx, jti); err != nil {
			return nil, fmt.Errorf("deactivate expired token: %w", err)
		}
		return nil, domain.ErrNotFound("refresh token %q has expired", jti)
	}
	return t, nil
}

// Revoke sets is_active=0 on the record if present. Idempotent: revoking
// an already-inactive record still reports true.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, jti string) (bool, error) {
	res, err := r.write.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE jti = ?`, jti)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllForUser flips every currently-active record owned by the user
// and returns how many were flipped ("log out everywhere").
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.write.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupExpired deactivates every active record whose expiry has passed.
// Safe to run concurrently with Validate and Create: it only moves records
// from active to inactive and never touches identifiers it doesn't own.
func (r *RefreshTokenRepo) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.write.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE is_active = 1 AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns a page of records, newest first.
func (r *RefreshTokenRepo) List(ctx context.Context, activeOnly bool, page domain.PageRequest) ([]domain.RefreshToken, int64, error) {
	where := ""
	if activeOnly {
		where = " WHERE is_active = 1"
	}

	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+refreshTokenCols+` FROM refresh_tokens`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tokens, err := collectRefreshTokens(rows)
	if err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

// ListByUser returns a page of one user's records, newest first.
func (r *RefreshTokenRepo) ListByUser(ctx context.Context, userID int64, activeOnly bool, page domain.PageRequest) ([]domain.RefreshToken, int64, error) {
	where := ` WHERE user_id = ?`
	if activeOnly {
		where += ` AND is_active = 1`
	}

	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens`+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+refreshTokenCols+` FROM refresh_tokens`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tokens, err := collectRefreshTokens(rows)
	if err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

// Stats summarises the table for the admin surface.
func (r *RefreshTokenRepo) Stats(ctx context.Context) (*domain.TokenStats, error) {
	var s domain.TokenStats
	err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM refresh_tokens`).Scan(&s.Total, &s.Active)
	if err != nil {
		return nil, err
	}
	s.Inactive = s.Total - s.Active
	return &s, nil
}

func collectRefreshTokens(rows *sql.Rows) ([]domain.RefreshToken, error) {
	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

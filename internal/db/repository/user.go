package repository

import (
	"context"
	"database/sql"

	"qpin/internal/domain"
)

// UserRepo implements domain.UserRepository. Mutations go through the
// serialized write pool; lookups and listings use the read pool.
type UserRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(write, read *sql.DB) *UserRepo {
	return &UserRepo{write: write, read: read}
}

const userCols = `id, email, google_id, picture, name, role, is_active, enduser_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u       domain.User
		email   sql.NullString
		gid     sql.NullString
		picture sql.NullString
		name    sql.NullString
		role    string
		active  int64
		eutok   sql.NullString
	)
	err := row.Scan(&u.ID, &email, &gid, &picture, &name, &role, &active, &eutok, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = strPtr(email)
	u.GoogleID = strPtr(gid)
	u.Picture = strPtr(picture)
	u.Name = strPtr(name)
	u.Role = domain.Role(role)
	u.IsActive = active != 0
	u.EnduserToken = strPtr(eutok)
	return &u, nil
}

// Create persists a new user.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO users (email, google_id, picture, name, role, is_active, enduser_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullStr(u.Email), nullStr(u.GoogleID), nullStr(u.Picture), nullStr(u.Name),
		string(u.Role), boolToInt(u.IsActive), nullStr(u.EnduserToken))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return u, nil
}

func (r *UserRepo) getByColumn(ctx context.Context, column, value string) (*domain.User, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE `+column+` = ?`, value)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return u, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getByColumn(ctx, "email", email)
}

// GetByGoogleID fetches a user by external provider id.
func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.getByColumn(ctx, "google_id", googleID)
}

// GetByEnduserToken fetches a user by their stored enduser token.
func (r *UserRepo) GetByEnduserToken(ctx context.Context, token string) (*domain.User, error) {
	return r.getByColumn(ctx, "enduser_token", token)
}

// List returns a page of users ordered by id.
func (r *UserRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY id LIMIT ? OFFSET ?`,
		page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListByRole returns a page of users carrying the given global role.
func (r *UserRepo) ListByRole(ctx context.Context, role domain.Role, page domain.PageRequest) ([]domain.User, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE role = ? ORDER BY id LIMIT ? OFFSET ?`,
		string(role), page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update applies the non-nil fields of req and returns the updated row.
func (r *UserRepo) Update(ctx context.Context, id int64, req domain.UpdateUserRequest) (*domain.User, error) {
	query := `UPDATE users SET updated_at = CURRENT_TIMESTAMP`
	args := []any{}
	if req.Name != nil {
		query += `, name = ?`
		args = append(args, *req.Name)
	}
	if req.Picture != nil {
		query += `, picture = ?`
		args = append(args, *req.Picture)
	}
	if req.GoogleID != nil {
		query += `, google_id = ?`
		args = append(args, *req.GoogleID)
	}
	if req.IsActive != nil {
		query += `, is_active = ?`
		args = append(args, boolToInt(*req.IsActive))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := r.write.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrNotFound("user %d not found", id)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user by id. Membership rows, refresh tokens, and
// sessions cascade.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("user %d not found", id)
	}
	return nil
}

// SetRole updates the user's global role.
func (r *UserRepo) SetRole(ctx context.Context, id int64, role domain.Role) error {
	res, err := r.write.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(role), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("user %d not found", id)
	}
	return nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

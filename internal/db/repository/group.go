package repository

import (
	"context"
	"database/sql"

	"qpin/internal/domain"
)

// GroupRepo implements domain.GroupRepository. Mutations go through the
// serialized write pool; lookups and listings use the read pool.
type GroupRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewGroupRepo creates a new GroupRepo.
func NewGroupRepo(write, read *sql.DB) *GroupRepo {
	return &GroupRepo{write: write, read: read}
}

const groupCols = `id, name, description, is_active, created_by_id, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*domain.Group, error) {
	var (
		g      domain.Group
		desc   sql.NullString
		active int64
	)
	err := row.Scan(&g.ID, &g.Name, &desc, &active, &g.CreatedByID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Description = desc.String
	g.IsActive = active != 0
	return &g, nil
}

// Create persists a new group.
func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) (*domain.Group, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO groups (name, description, is_active, created_by_id) VALUES (?, ?, ?, ?)`,
		g.Name, g.Description, boolToInt(g.IsActive), g.CreatedByID)
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a group by primary key.
func (r *GroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// List returns a page of groups ordered by id.
func (r *GroupRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Group, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+groupCols+` FROM groups ORDER BY id LIMIT ? OFFSET ?`,
		page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	groups, err := collectGroups(rows)
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// Update applies the non-nil fields of req and returns the updated row.
func (r *GroupRepo) Update(ctx context.Context, id int64, req domain.UpdateGroupRequest) (*domain.Group, error) {
	query := `UPDATE groups SET updated_at = CURRENT_TIMESTAMP`
	args := []any{}
	if req.Name != nil {
		query += `, name = ?`
		args = append(args, *req.Name)
	}
	if req.Description != nil {
		query += `, description = ?`
		args = append(args, *req.Description)
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
		return nil, domain.ErrNotFound("group %d not found", id)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a group by id. Memberships, assessments, and sessions
// cascade.
func (r *GroupRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("group %d not found", id)
	}
	return nil
}

const memberCols = `id, user_id, group_id, role, created_at`

func scanMember(row interface{ Scan(...any) error }) (*domain.GroupMember, error) {
	var (
		m    domain.GroupMember
		role string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.GroupID, &role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = domain.GroupRole(role)
	return &m, nil
}

// AddMember inserts a membership row. A second membership for the same
// user and group maps to a ConflictError.
func (r *GroupRepo) AddMember(ctx context.Context, m *domain.GroupMember) (*domain.GroupMember, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO group_members (user_id, group_id, role) VALUES (?, ?, ?)`,
		m.UserID, m.GroupID, string(m.Role))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	row := r.read.QueryRowContext(ctx, `SELECT `+memberCols+` FROM group_members WHERE id = ?`, id)
	created, err := scanMember(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

// RemoveMember deletes the membership row for the pair.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int64) error {
	res, err := r.write.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("user %d is not a member of group %d", userID, groupID)
	}
	return nil
}

// SetMemberRole changes the role carried by an existing membership.
func (r *GroupRepo) SetMemberRole(ctx context.Context, groupID, userID int64, role domain.GroupRole) error {
	res, err := r.write.ExecContext(ctx,
		`UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ?`,
		string(role), groupID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("user %d is not a member of group %d", userID, groupID)
	}
	return nil
}

// GetMember returns the membership row for the pair, if any.
func (r *GroupRepo) GetMember(ctx context.Context, groupID, userID int64) (*domain.GroupMember, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	m, err := scanMember(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return m, nil
}

// ListMembers returns every membership of a group ordered by join time.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID int64) ([]domain.GroupMember, error) {
	rows, err := r.read.QueryContext(ctx,
		`SELECT `+memberCols+` FROM group_members WHERE group_id = ? ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.GroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListGroupsForUser returns the groups the user belongs to.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int64) ([]domain.Group, error) {
	rows, err := r.read.QueryContext(ctx,
		`SELECT g.id, g.name, g.description, g.is_active, g.created_by_id, g.created_at, g.updated_at
		 FROM groups g
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = ?
		 ORDER BY g.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectGroups(rows)
}

func collectGroups(rows *sql.Rows) ([]domain.Group, error) {
	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

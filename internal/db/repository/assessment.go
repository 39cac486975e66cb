package repository

import (
	"context"
	"database/sql"
	"time"

	"qpin/internal/domain"
)

// AssessmentRepo implements domain.AssessmentRepository. Mutations go
// through the serialized write pool; lookups and listings use the read
// pool.
type AssessmentRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewAssessmentRepo creates a new AssessmentRepo.
func NewAssessmentRepo(write, read *sql.DB) *AssessmentRepo {
	return &AssessmentRepo{write: write, read: read}
}

const assessmentCols = `id, title, description, group_id, created_by_id, status, start_date, end_date, created_at, updated_at`

func scanAssessment(row interface{ Scan(...any) error }) (*domain.Assessment, error) {
	var (
		a      domain.Assessment
		desc   sql.NullString
		status string
		start  sql.NullTime
		end    sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Title, &desc, &a.GroupID, &a.CreatedByID, &status, &start, &end, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Description = desc.String
	a.Status = domain.AssessmentStatus(status)
	a.StartDate = timePtr(start)
	a.EndDate = timePtr(end)
	return &a, nil
}

// Create persists a new assessment.
func (r *AssessmentRepo) Create(ctx context.Context, a *domain.Assessment) (*domain.Assessment, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO assessments (title, description, group_id, created_by_id, status, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Description, a.GroupID, a.CreatedByID, string(a.Status),
		nullTime(a.StartDate), nullTime(a.EndDate))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches an assessment by primary key.
func (r *AssessmentRepo) GetByID(ctx context.Context, id int64) (*domain.Assessment, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return a, nil
}

// List returns a page of assessments, newest first.
func (r *AssessmentRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Assessment, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+assessmentCols+` FROM assessments ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectAssessments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByGroup returns a page of one group's assessments, newest first.
func (r *AssessmentRepo) ListByGroup(ctx context.Context, groupID int64, page domain.PageRequest) ([]domain.Assessment, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessments WHERE group_id = ?`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+assessmentCols+` FROM assessments WHERE group_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		groupID, page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectAssessments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies the non-nil fields of req and returns the updated row.
func (r *AssessmentRepo) Update(ctx context.Context, id int64, req domain.UpdateAssessmentRequest) (*domain.Assessment, error) {
	query := `UPDATE assessments SET updated_at = CURRENT_TIMESTAMP`
	args := []any{}
	if req.Title != nil {
		query += `, title = ?`
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		query += `, description = ?`
		args = append(args, *req.Description)
	}
	if req.Status != nil {
		query += `, status = ?`
		args = append(args, string(*req.Status))
	}
	if req.StartDate != nil {
		query += `, start_date = ?`
		args = append(args, req.StartDate.UTC())
	}
	if req.EndDate != nil {
		query += `, end_date = ?`
		args = append(args, req.EndDate.UTC())
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
		return nil, domain.ErrNotFound("assessment %d not found", id)
	}
	return r.GetByID(ctx, id)
}

// Delete removes an assessment by id. Sessions cascade.
func (r *AssessmentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("assessment %d not found", id)
	}
	return nil
}

const sessionCols = `id, assessment_id, user_id, status, started_at, completed_at, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*domain.AssessmentSession, error) {
	var (
		s         domain.AssessmentSession
		status    string
		started   sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(&s.ID, &s.AssessmentID, &s.UserID, &status, &started, &completed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(status)
	s.StartedAt = timePtr(started)
	s.CompletedAt = timePtr(completed)
	return &s, nil
}

// CreateSession inserts a session row. A second session for the same
// assessment and user maps to a ConflictError.
func (r *AssessmentRepo) CreateSession(ctx context.Context, s *domain.AssessmentSession) (*domain.AssessmentSession, error) {
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO assessment_sessions (assessment_id, user_id, status, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.AssessmentID, s.UserID, string(s.Status), nullTime(s.StartedAt), nullTime(s.CompletedAt))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetSession(ctx, id)
}

// GetSession fetches a session by primary key.
func (r *AssessmentRepo) GetSession(ctx context.Context, id int64) (*domain.AssessmentSession, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM assessment_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return s, nil
}

// SessionExists reports whether the user already has a session for the
// assessment.
func (r *AssessmentRepo) SessionExists(ctx context.Context, assessmentID, userID int64) (bool, error) {
	var n int64
	err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_sessions WHERE assessment_id = ? AND user_id = ?`,
		assessmentID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSessions returns a page of an assessment's sessions.
func (r *AssessmentRepo) ListSessions(ctx context.Context, assessmentID int64, page domain.PageRequest) ([]domain.AssessmentSession, int64, error) {
	return r.listSessions(ctx, "assessment_id", assessmentID, page)
}

// ListSessionsByUser returns a page of one user's sessions.
func (r *AssessmentRepo) ListSessionsByUser(ctx context.Context, userID int64, page domain.PageRequest) ([]domain.AssessmentSession, int64, error) {
	return r.listSessions(ctx, "user_id", userID, page)
}

func (r *AssessmentRepo) listSessions(ctx context.Context, column string, id int64, page domain.PageRequest) ([]domain.AssessmentSession, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_sessions WHERE `+column+` = ?`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM assessment_sessions WHERE `+column+` = ? ORDER BY id LIMIT ? OFFSET ?`,
		id, page.EffectiveLimit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []domain.AssessmentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

// SetSessionStatus transitions a session and stamps the matching time
// column: started_at for IN_PROGRESS, completed_at for COMPLETED.
func (r *AssessmentRepo) SetSessionStatus(ctx context.Context, id int64, status domain.SessionStatus, at time.Time) error {
	query := `UPDATE assessment_sessions SET status = ?, updated_at = CURRENT_TIMESTAMP`
	args := []any{string(status)}
	switch status {
	case domain.SessionInProgress:
		query += `, started_at = ?`
		args = append(args, at.UTC())
	case domain.SessionCompleted:
		query += `, completed_at = ?`
		args = append(args, at.UTC())
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := r.write.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("session %d not found", id)
	}
	return nil
}

// Stats aggregates session counts for one assessment.
func (r *AssessmentRepo) Stats(ctx context.Context, assessmentID int64) (*domain.AssessmentStats, error) {
	var stats domain.AssessmentStats
	err := r.read.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		 FROM assessment_sessions WHERE assessment_id = ?`,
		string(domain.SessionCompleted), assessmentID).Scan(&stats.TotalSessions, &stats.CompletedSessions)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func collectAssessments(rows *sql.Rows) ([]domain.Assessment, error) {
	var items []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

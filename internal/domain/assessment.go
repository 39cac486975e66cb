package domain

import "time"

// AssessmentStatus is the lifecycle state of an assessment.
type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "DRAFT"
	AssessmentActive    AssessmentStatus = "ACTIVE"
	AssessmentCompleted AssessmentStatus = "COMPLETED"
	AssessmentCancelled AssessmentStatus = "CANCELLED"
)

// Valid reports whether s is one of the known assessment statuses.
func (s AssessmentStatus) Valid() bool {
	switch s {
	case AssessmentDraft, AssessmentActive, AssessmentCompleted, AssessmentCancelled:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a single participant's session.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "NOT_STARTED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionExpired    SessionStatus = "EXPIRED"
)

// Valid reports whether s is one of the known session statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionNotStarted, SessionInProgress, SessionCompleted, SessionExpired:
		return true
	}
	return false
}

// Assessment is a survey/test run by a group admin against a group.
type Assessment struct {
	ID          int64
	Title       string
	Description string
	GroupID     int64
	CreatedByID int64
	Status      AssessmentStatus
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssessmentSession is one participant's run of an assessment.
type AssessmentSession struct {
	ID           int64
	AssessmentID int64
	UserID       int64
	Status       SessionStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AssessmentStats aggregates session progress for one assessment.
type AssessmentStats struct {
	TotalSessions     int64
	CompletedSessions int64
}

// CreateAssessmentRequest holds parameters for creating an assessment.
type CreateAssessmentRequest struct {
	Title       string
	Description string
	GroupID     int64
	StartDate   *time.Time
	EndDate     *time.Time
}

// Validate checks that the request is well-formed.
func (r *CreateAssessmentRequest) Validate() error {
	if r.Title == "" {
		return ErrValidation("title is required")
	}
	if r.GroupID <= 0 {
		return ErrValidation("group_id is required")
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return ErrValidation("end_date must be after start_date")
	}
	return nil
}

// UpdateAssessmentRequest holds optional fields for an assessment update.
type UpdateAssessmentRequest struct {
	Title       *string
	Description *string
	Status      *AssessmentStatus
	StartDate   *time.Time
	EndDate     *time.Time
}

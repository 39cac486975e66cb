package service

import (
	"context"
	"log/slog"
	"time"

	"qpin/internal/domain"
)

// AssessmentService implements assessment and session management with
// group-scoped guards.
type AssessmentService struct {
	assessments domain.AssessmentRepository
	authz       *Authorizer
	log         *slog.Logger
	now         func() time.Time
}

// NewAssessmentService wires the assessment service.
func NewAssessmentService(assessments domain.AssessmentRepository, authz *Authorizer, log *slog.Logger) *AssessmentService {
	return &AssessmentService{
		assessments: assessments,
		authz:       authz,
		log:         log.With("component", "assessments"),
		now:         time.Now,
	}
}

// Create makes a new draft assessment in a group. Group admins and global
// admins only.
func (s *AssessmentService) Create(ctx context.Context, actor *domain.User, req domain.CreateAssessmentRequest) (*domain.Assessment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, req.GroupID); err != nil {
		return nil, err
	}
	a, err := s.assessments.Create(ctx, &domain.Assessment{
		Title:       req.Title,
		Description: req.Description,
		GroupID:     req.GroupID,
		CreatedByID: actor.ID,
		Status:      domain.AssessmentDraft,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("created assessment", "assessment_id", a.ID, "group_id", a.GroupID, "actor_id", actor.ID)
	return a, nil
}

// Get returns an assessment. Group members and global admins only.
func (s *AssessmentService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.Assessment, error) {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupMember(ctx, actor, a.GroupID); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByGroup returns a page of a group's assessments. Group members and
// global admins only.
func (s *AssessmentService) ListByGroup(ctx context.Context, actor *domain.User, groupID int64, page domain.PageRequest) ([]domain.Assessment, int64, error) {
	if err := s.authz.RequireGroupMember(ctx, actor, groupID); err != nil {
		return nil, 0, err
	}
	return s.assessments.ListByGroup(ctx, groupID, page)
}

// Update applies a partial update. Group admins and global admins only.
// A status change must name a known status.
func (s *AssessmentService) Update(ctx context.Context, actor *domain.User, id int64, req domain.UpdateAssessmentRequest) (*domain.Assessment, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, domain.ErrValidation("unknown assessment status %q", string(*req.Status))
	}
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, a.GroupID); err != nil {
		return nil, err
	}
	return s.assessments.Update(ctx, id, req)
}

// Delete removes an assessment. Group admins and global admins only.
func (s *AssessmentService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, a.GroupID); err != nil {
		return err
	}
	if err := s.assessments.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("deleted assessment", "assessment_id", id, "actor_id", actor.ID)
	return nil
}

// StartSession creates the actor's session for an active assessment and
// marks it in progress. Group members only; a second start for the same
// assessment conflicts.
func (s *AssessmentService) StartSession(ctx context.Context, actor *domain.User, assessmentID int64) (*domain.AssessmentSession, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupMember(ctx, actor, a.GroupID); err != nil {
		return nil, err
	}
	if a.Status != domain.AssessmentActive {
		return nil, domain.ErrValidation("assessment %d is not active", assessmentID)
	}
	exists, err := s.assessments.SessionExists(ctx, assessmentID, actor.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrConflict("user %d already has a session for assessment %d", actor.ID, assessmentID)
	}

	sess, err := s.assessments.CreateSession(ctx, &domain.AssessmentSession{
		AssessmentID: assessmentID,
		UserID:       actor.ID,
		Status:       domain.SessionNotStarted,
	})
	if err != nil {
		return nil, err
	}
	if err := s.assessments.SetSessionStatus(ctx, sess.ID, domain.SessionInProgress, s.now()); err != nil {
		return nil, err
	}
	return s.assessments.GetSession(ctx, sess.ID)
}

// CompleteSession marks the actor's session finished. Session owner only.
func (s *AssessmentService) CompleteSession(ctx context.Context, actor *domain.User, sessionID int64) (*domain.AssessmentSession, error) {
	sess, err := s.assessments.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != actor.ID {
		return nil, domain.ErrAccessDenied("not your session")
	}
	if sess.Status != domain.SessionInProgress {
		return nil, domain.ErrValidation("session %d is not in progress", sessionID)
	}
	if err := s.assessments.SetSessionStatus(ctx, sessionID, domain.SessionCompleted, s.now()); err != nil {
		return nil, err
	}
	return s.assessments.GetSession(ctx, sessionID)
}

// ListSessions returns a page of an assessment's sessions. Group admins
// and global admins only.
func (s *AssessmentService) ListSessions(ctx context.Context, actor *domain.User, assessmentID int64, page domain.PageRequest) ([]domain.AssessmentSession, int64, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, a.GroupID); err != nil {
		return nil, 0, err
	}
	return s.assessments.ListSessions(ctx, assessmentID, page)
}

// ListMySessions returns a page of the actor's own sessions.
func (s *AssessmentService) ListMySessions(ctx context.Context, actor *domain.User, page domain.PageRequest) ([]domain.AssessmentSession, int64, error) {
	return s.assessments.ListSessionsByUser(ctx, actor.ID, page)
}

// Stats aggregates session progress for one assessment. Group admins and
// global admins only.
func (s *AssessmentService) Stats(ctx context.Context, actor *domain.User, assessmentID int64) (*domain.AssessmentStats, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireGroupAdmin(ctx, actor, a.GroupID); err != nil {
		return nil, err
	}
	return s.assessments.Stats(ctx, assessmentID)
}

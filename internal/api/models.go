package api

import (
	"time"

	"qpin/internal/domain"
)

const refreshCookieName = "refresh_token"

type userResponse struct {
	ID           int64     `json:"id"`
	Email        *string   `json:"email"`
	Name         *string   `json:"name"`
	Picture      *string   `json:"picture"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	EnduserToken *string   `json:"enduser_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Picture:      u.Picture,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		EnduserToken: u.EnduserToken,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type userListResponse struct {
	Items []userResponse `json:"items"`
	Total int64          `json:"total"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type groupResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedByID int64     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toGroupResponse(g *domain.Group) groupResponse {
	return groupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		IsActive:    g.IsActive,
		CreatedByID: g.CreatedByID,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

type groupListResponse struct {
	Items []groupResponse `json:"items"`
	Total int64           `json:"total"`
}

type memberResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	GroupID   int64     `json:"group_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toMemberResponse(m *domain.GroupMember) memberResponse {
	return memberResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		GroupID:   m.GroupID,
		Role:      string(m.Role),
		CreatedAt: m.CreatedAt,
	}
}

type assessmentResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	GroupID     int64      `json:"group_id"`
	CreatedByID int64      `json:"created_by_id"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toAssessmentResponse(a *domain.Assessment) assessmentResponse {
	return assessmentResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		GroupID:     a.GroupID,
		CreatedByID: a.CreatedByID,
		Status:      string(a.Status),
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type assessmentListResponse struct {
	Items []assessmentResponse `json:"items"`
	Total int64                `json:"total"`
}

type sessionResponse struct {
	ID           int64      `json:"id"`
	AssessmentID int64      `json:"assessment_id"`
	UserID       int64      `json:"user_id"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toSessionResponse(s *domain.AssessmentSession) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		AssessmentID: s.AssessmentID,
		UserID:       s.UserID,
		Status:       string(s.Status),
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
		CreatedAt:    s.CreatedAt,
	}
}

type sessionListResponse struct {
	Items []sessionResponse `json:"items"`
	Total int64             `json:"total"`
}

type refreshTokenResponse struct {
	ID         int64     `json:"id"`
	JTI        string    `json:"jti"`
	UserID     int64     `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
	DeviceInfo *string   `json:"device_info"`
	IPAddress  *string   `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRefreshTokenResponse(t *domain.RefreshToken) refreshTokenResponse {
	return refreshTokenResponse{
		ID:         t.ID,
		JTI:        t.JTI,
		UserID:     t.UserID,
		ExpiresAt:  t.ExpiresAt,
		IsActive:   t.IsActive,
		DeviceInfo: t.DeviceInfo,
		IPAddress:  t.IPAddress,
		CreatedAt:  t.CreatedAt,
	}
}

type refreshTokenListResponse struct {
	Items []refreshTokenResponse `json:"items"`
	Total int64                  `json:"total"`
}

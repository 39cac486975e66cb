package api

import (
	"net/http"
	"time"

	"qpin/internal/domain"
)

type createAssessmentRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	GroupID     int64      `json:"group_id"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (h *Handler) createAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createAssessmentRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	assessment, err := h.assessments.Create(r.Context(), actor, domain.CreateAssessmentRequest{
		Title:       req.Title,
		Description: req.Description,
		GroupID:     req.GroupID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toAssessmentResponse(assessment))
}

func (h *Handler) getAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	assessment, err := h.assessments.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAssessmentResponse(assessment))
}

func (h *Handler) listGroupAssessments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	groupID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	assessments, total, err := h.assessments.ListByGroup(r.Context(), actor, groupID, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]assessmentResponse, 0, len(assessments))
	for i := range assessments {
		items = append(items, toAssessmentResponse(&assessments[i]))
	}
	h.respondJSON(w, http.StatusOK, assessmentListResponse{Items: items, Total: total})
}

type updateAssessmentRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (h *Handler) updateAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req updateAssessmentRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	update := domain.UpdateAssessmentRequest{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if req.Status != nil {
		status := domain.AssessmentStatus(*req.Status)
		update.Status = &status
	}

	assessment, err := h.assessments.Update(r.Context(), actor, id, update)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAssessmentResponse(assessment))
}

func (h *Handler) deleteAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.assessments.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	session, err := h.assessments.StartSession(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	session, err := h.assessments.CompleteSession(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	sessions, total, err := h.assessments.ListSessions(r.Context(), actor, id, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionResponse(&sessions[i]))
	}
	h.respondJSON(w, http.StatusOK, sessionListResponse{Items: items, Total: total})
}

func (h *Handler) listMySessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	sessions, total, err := h.assessments.ListMySessions(r.Context(), actor, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionResponse(&sessions[i]))
	}
	h.respondJSON(w, http.StatusOK, sessionListResponse{Items: items, Total: total})
}

func (h *Handler) assessmentStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	stats, err := h.assessments.Stats(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{
		"total_sessions":     stats.TotalSessions,
		"completed_sessions": stats.CompletedSessions,
	})
}

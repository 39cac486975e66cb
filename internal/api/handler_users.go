package api

import (
	"net/http"

	"qpin/internal/domain"
)

type createHRRequest struct {
	Email   string `json:"email"`
	GroupID int64  `json:"group_id"`
}

func (h *Handler) createHR(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createHRRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.users.CreateHR(r.Context(), actor, domain.CreateHRRequest{
		Email:   req.Email,
		GroupID: req.GroupID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

type createEnduserRequest struct {
	Name    string `json:"name"`
	GroupID int64  `json:"group_id"`
}

func (h *Handler) createEnduser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createEnduserRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.users.CreateEnduser(r.Context(), actor, domain.CreateEnduserRequest{
		Name:    req.Name,
		GroupID: req.GroupID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(actor))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var role *domain.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := domain.ParseRole(raw)
		if err != nil {
			h.respondError(w, err)
			return
		}
		role = &parsed
	}

	users, total, err := h.users.List(r.Context(), actor, role, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	h.respondJSON(w, http.StatusOK, userListResponse{Items: items, Total: total})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Picture  *string `json:"picture"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req updateUserRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), actor, id, domain.UpdateUserRequest{
		Name:     req.Name,
		Picture:  req.Picture,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

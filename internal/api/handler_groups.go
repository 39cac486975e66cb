package api

import (
	"net/http"

	"qpin/internal/domain"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	group, err := h.groups.Create(r.Context(), actor, domain.CreateGroupRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toGroupResponse(group))
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	groups, total, err := h.groups.List(r.Context(), actor, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]groupResponse, 0, len(groups))
	for i := range groups {
		items = append(items, toGroupResponse(&groups[i]))
	}
	h.respondJSON(w, http.StatusOK, groupListResponse{Items: items, Total: total})
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	group, err := h.groups.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toGroupResponse(group))
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req updateGroupRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	group, err := h.groups.Update(r.Context(), actor, id, domain.UpdateGroupRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toGroupResponse(group))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.groups.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	members, err := h.groups.ListMembers(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]memberResponse, 0, len(members))
	for i := range members {
		items = append(items, toMemberResponse(&members[i]))
	}
	h.respondJSON(w, http.StatusOK, items)
}

type addMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req addMemberRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Role == "" {
		req.Role = string(domain.GroupRoleMember)
	}

	member, err := h.groups.AddMember(r.Context(), actor, id, req.UserID, domain.GroupRole(req.Role))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toMemberResponse(member))
}

type setMemberRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) setGroupMemberRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	groupID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req setMemberRoleRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.groups.SetMemberRole(r.Context(), actor, groupID, userID, domain.GroupRole(req.Role)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	groupID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.groups.RemoveMember(r.Context(), actor, groupID, userID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

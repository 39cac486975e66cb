package api

import (
	"net/http"

	"qpin/internal/domain"
)

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"

	records, total, err := h.tokens.List(r.Context(), actor, activeOnly, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toRefreshTokenList(records, total))
}

func (h *Handler) listMyTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"

	records, total, err := h.tokens.ListMine(r.Context(), actor, activeOnly, pageFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toRefreshTokenList(records, total))
}

func toRefreshTokenList(records []domain.RefreshToken, total int64) refreshTokenListResponse {
	items := make([]refreshTokenResponse, 0, len(records))
	for i := range records {
		items = append(items, toRefreshTokenResponse(&records[i]))
	}
	return refreshTokenListResponse{Items: items, Total: total}
}

func (h *Handler) tokenStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	stats, err := h.tokens.Stats(r.Context(), actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{
		"total":    stats.Total,
		"active":   stats.Active,
		"inactive": stats.Inactive,
	})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.tokens.RevokeByID(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type revokeJTIRequest struct {
	JTI string `json:"jti"`
}

func (h *Handler) revokeTokenByJTI(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req revokeJTIRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.JTI == "" {
		h.respondError(w, domain.ErrValidation("jti is required"))
		return
	}

	if err := h.tokens.RevokeByJTI(r.Context(), actor, req.JTI); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeAllMyTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	revoked, err := h.tokens.RevokeAllMine(r.Context(), actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}

func (h *Handler) cleanupTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	cleaned, err := h.tokens.Cleanup(r.Context(), actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"cleaned": cleaned})
}

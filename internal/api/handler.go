// Package api exposes the HTTP surface: chi routes, request/response
// shapes, and the mapping from domain errors to status codes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"qpin/internal/domain"
	"qpin/internal/service"
)

// Handler carries the service layer and the few settings the HTTP surface
// needs directly.
type Handler struct {
	auth        *service.AuthService
	users       *service.UserService
	groups      *service.GroupService
	tokens      *service.TokenAdminService
	assessments *service.AssessmentService

	frontendURL   string
	secureCookies bool
	log           *slog.Logger
}

// NewHandler wires the services into an HTTP handler. secureCookies should
// be false only in local development over plain HTTP.
func NewHandler(
	auth *service.AuthService,
	users *service.UserService,
	groups *service.GroupService,
	tokens *service.TokenAdminService,
	assessments *service.AssessmentService,
	frontendURL string,
	secureCookies bool,
	log *slog.Logger,
) *Handler {
	return &Handler{
		auth:          auth,
		users:         users,
		groups:        groups,
		tokens:        tokens,
		assessments:   assessments,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
		log:           log.With("component", "api"),
	}
}

// Routes builds the versioned route tree. Everything except the login
// entry points sits behind the authentication middleware.
func (h *Handler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", h.googleLogin)
			r.Get("/google/callback", h.googleCallback)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
			r.Post("/enduser/login", h.enduserLogin)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/check", h.authCheck)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/users", func(r chi.Router) {
				r.Post("/hr", h.createHR)
				r.Post("/enduser", h.createEnduser)
				r.Get("/", h.listUsers)
				r.Get("/me", h.currentUser)
				r.Get("/{id}", h.getUser)
				r.Patch("/{id}", h.updateUser)
				r.Delete("/{id}", h.deleteUser)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", h.createGroup)
				r.Get("/", h.listGroups)
				r.Get("/{id}", h.getGroup)
				r.Patch("/{id}", h.updateGroup)
				r.Delete("/{id}", h.deleteGroup)
				r.Get("/{id}/members", h.listGroupMembers)
				r.Post("/{id}/members", h.addGroupMember)
				r.Patch("/{id}/members/{userID}", h.setGroupMemberRole)
				r.Delete("/{id}/members/{userID}", h.removeGroupMember)
				r.Get("/{id}/assessments", h.listGroupAssessments)
			})

			r.Route("/assessments", func(r chi.Router) {
				r.Post("/", h.createAssessment)
				r.Get("/{id}", h.getAssessment)
				r.Patch("/{id}", h.updateAssessment)
				r.Delete("/{id}", h.deleteAssessment)
				r.Post("/{id}/sessions", h.startSession)
				r.Get("/{id}/sessions", h.listSessions)
				r.Get("/{id}/stats", h.assessmentStats)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/mine", h.listMySessions)
				r.Post("/{id}/complete", h.completeSession)
			})

			r.Route("/tokens", func(r chi.Router) {
				r.Get("/", h.listTokens)
				r.Get("/mine", h.listMyTokens)
				r.Get("/stats", h.tokenStats)
				r.Post("/{id}/revoke", h.revokeToken)
				r.Post("/revoke-jti", h.revokeTokenByJTI)
				r.Post("/revoke-all", h.revokeAllMyTokens)
				r.Post("/cleanup", h.cleanupTokens)
			})
		})
	})
	return r
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.Error("encode response", "error", err)
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	h.respondJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": err.Error(),
	})
}

func (h *Handler) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// principal returns the authenticated user. The authentication middleware
// guarantees presence on every protected route.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		h.respondError(w, domain.ErrUnauthorized("authentication required"))
		return nil, false
	}
	return user, true
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrValidation("invalid %s", name)
	}
	return id, nil
}

func pageFromQuery(r *http.Request) domain.PageRequest {
	var page domain.PageRequest
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil {
		page.Skip = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		page.Limit = v
	}
	return page
}

// refreshCookie builds the HTTP-only cookie holding the refresh token.
// Scoped to the auth endpoints so the browser never sends it elsewhere.
func (h *Handler) refreshCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/v1/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) clearRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

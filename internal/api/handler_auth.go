package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"qpin/internal/domain"
)

const stateCookieName = "oauth_state"

// googleLogin redirects the browser to the provider consent screen. A
// random state value is pinned in a short-lived cookie and checked again
// at the callback.
func (h *Handler) googleLogin(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.respondError(w, domain.ErrInternal("generate state: %v", err))
		return
	}
	state := hex.EncodeToString(buf)

	url, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		h.respondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/v1/auth",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// googleCallback finishes the authorization-code flow: the access token
// travels to the frontend as a query parameter, the refresh token only as
// an HTTP-only cookie.
func (h *Handler) googleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || cookie.Value != state {
		h.respondError(w, domain.ErrUnauthorized("oauth state mismatch"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		h.respondError(w, domain.ErrValidation("missing authorization code"))
		return
	}

	_, pair, err := h.auth.LoginWithGoogle(r.Context(), code, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		h.respondError(w, err)
		return
	}

	http.SetCookie(w, h.clearStateCookie())
	http.SetCookie(w, h.refreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	http.Redirect(w, r, h.frontendURL+"/auth/callback?token="+pair.AccessToken, http.StatusFound)
}

func (h *Handler) clearStateCookie() *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// refresh exchanges the cookie refresh token for a fresh access token.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.respondError(w, domain.ErrUnauthorized("missing refresh token"))
		return
	}

	access, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

// logout revokes the presented refresh token and clears the cookie. It
// never fails: logging out with a bad or absent token is still a logout.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			h.respondError(w, err)
			return
		}
	}
	http.SetCookie(w, h.clearRefreshCookie())
	w.WriteHeader(http.StatusNoContent)
}

type enduserLoginRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// enduserLogin authenticates a participant by their issued credential and
// display name. The refresh token is delivered as a cookie, same as the
// browser OAuth flow.
func (h *Handler) enduserLogin(w http.ResponseWriter, r *http.Request) {
	var req enduserLoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Token == "" || req.Name == "" {
		h.respondError(w, domain.ErrValidation("token and name are required"))
		return
	}

	user, pair, err := h.auth.EnduserLogin(r.Context(), req.Token, req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}

	http.SetCookie(w, h.refreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	h.respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

// authCheck echoes the authenticated principal.
func (h *Handler) authCheck(w http.ResponseWriter, r *http.Request) {
	user, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          toUserResponse(user),
	})
}

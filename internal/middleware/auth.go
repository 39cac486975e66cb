package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"qpin/internal/domain"
	"qpin/internal/token"
)

// Authenticate verifies the Bearer access token, loads the corresponding
// user, and stores it in the request context as the principal. Requests
// without a valid token for an active user get a 401.
func Authenticate(codec *token.Codec, users domain.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}
			credential := strings.TrimPrefix(auth, "Bearer ")

			claims, ok := codec.Verify(credential, token.TypeAccess)
			if !ok {
				unauthorized(w, "invalid or expired token")
				return
			}
			id, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), id)
			if err != nil || !user.IsActive {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"notes-sync-client/pkg/jwt"
	"notes-sync-client/pkg/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenValidator checks an access token. *service.AuthService implements it.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				response.Unauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the token from the Authorization header. Browsers cannot
// set headers on a WebSocket upgrade, so the token query parameter is
// accepted for that request.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			return r.URL.Query().Get("token")
		}
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey struct{}

// TokenValidator resolves a bearer token to a user ID
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token's user ID in the request context
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, status := bearerToken(r.Header.Get("Authorization"))
			if status != "" {
				unauthorized(w, status)
				return
			}

			userID, err := validator.ValidateJWT(token)
			if err != nil || userID == "" {
				unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, userID)))
		})
	}
}

// bearerToken extracts the token from an Authorization header value,
// returning a rejection message when the header is unusable
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header required"
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.Contains(token, " ") {
		return "", "Invalid authorization header format"
	}
	return token, ""
}

// GetUserID returns the authenticated user ID, or "" outside AuthMiddleware
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey{}).(string)
	return userID
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="partner"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{message})
}

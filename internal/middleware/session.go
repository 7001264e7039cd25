package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"ecosense/internal/models"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// SessionResolver turns a request into a user identity. A nil ID means the
// request is unauthenticated; a non-nil error means resolution itself broke.
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*int64, error)
}

// SessionAuth resolves the caller's identity and attaches it to the request
// context. Unidentified requests get 401 and resolver failures get 500, so
// the wrapped handler only ever runs with a user ID present.
func SessionAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				log.Printf("session resolution failed: %v", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if userID == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, *userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the resolved user ID from the request context.
func GetUserID(ctx context.Context) int64 {
	id, _ := ctx.Value(UserIDKey).(int64)
	return id
}

// BearerFromQuery promotes a token query parameter to the Authorization
// header. WebSocket clients need it since browsers cannot set headers on a
// WebSocket dial.
func BearerFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Message: message})
}

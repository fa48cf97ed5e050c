package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"todoTree/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	UserIDHeader    = "X-User-ID"
	UserEmailHeader = "X-User-Email"

	userKey contextKey = "user"
)

// User is the caller as asserted by the auth gateway in front of the API.
type User struct {
	ID    uuid.UUID
	Email string
}

// Identity requires a valid X-User-ID header and stores the caller in the
// request context. Authentication itself happens upstream.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		id, err := uuid.Parse(raw)
		if raw == "" || err != nil || id == uuid.Nil {
			logger.Warn("HTTP: request without a valid user",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("header", UserIDHeader),
				zap.String("client_ip", r.RemoteAddr))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error":      "UNAUTHORIZED",
				"message":    "missing or invalid " + UserIDHeader + " header",
				"request_id": GetRequestID(r.Context()),
			})
			return
		}

		user := User{ID: id, Email: strings.TrimSpace(r.Header.Get(UserEmailHeader))}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"todoTree/internal/logger"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimit allows rpm requests per minute per owner. Requests without a
// valid X-User-ID header are counted per client IP instead.
func RateLimit(rpm int) func(http.Handler) http.Handler {
	return httprate.Limit(rpm, time.Minute,
		httprate.WithKeyFuncs(keyByOwner),
		httprate.WithLimitHandler(rateLimited))
}

func keyByOwner(r *http.Request) (string, error) {
	if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(UserIDHeader))); err == nil && id != uuid.Nil {
		return "user:" + id.String(), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

// rateLimited runs after httprate has set the X-RateLimit-* and Retry-After
// headers.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	retryAfter, _ := strconv.Atoi(w.Header().Get("Retry-After"))

	logger.Warn("HTTP: rate limit exceeded",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("user_id", r.Header.Get(UserIDHeader)),
		zap.String("client_ip", r.RemoteAddr),
		zap.Int("retry_after", retryAfter))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     "too many requests, try again later",
		"retry_after": retryAfter,
		"request_id":  GetRequestID(r.Context()),
	})
}

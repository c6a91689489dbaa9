package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ironclad-authz/ironclad/internal/ctxkey"
	"github.com/ironclad-authz/ironclad/internal/domain/auth"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// LoggerKey is the context key for the enriched logger. Uses the shared
// key type from ctxkey so other packages can read it without an import
// cycle back into this one.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger with it, storing both in the request context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context, falling
// back to slog.Default() if none was set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// adminKeyHeader is the header mutating endpoints check against the
// configured admin key.
const adminKeyHeader = "X-Admin-Api-Key"

// AdminAuthMiddleware guards the five mutating endpoints with the admin
// key configured via ADMIN_API_KEY. When no key is configured, the
// Authenticator authorizes every request (see auth.Authenticator).
func AdminAuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authenticator.Authenticate(r.Header.Get(adminKeyHeader)) {
				writeError(w, http.StatusUnauthorized, "invalid or missing admin api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

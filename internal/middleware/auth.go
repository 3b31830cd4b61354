package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/utils"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFrom returns the authenticated user stored in the request context
// by the auth middleware, if any.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// resolveUser looks up the session token and returns its user, or nil
// when the token is missing, unknown, or expired.
func resolveUser(db *sql.DB, r *http.Request) (*models.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}

	session, err := database.GetSession(db, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	return database.GetUserByID(db, session.UserID)
}

// OptionalAuth attaches the authenticated user to the request context
// when a valid session token is present. Requests without one proceed
// anonymously.
func OptionalAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(db, r)
			if err != nil {
				slog.Error("failed to resolve session",
					"error", err,
					"ip", utils.GetClientIP(r),
				)
				writeError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if user != nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(db, r)
			if err != nil {
				slog.Error("failed to resolve session",
					"error", err,
					"ip", utils.GetClientIP(r),
				)
				writeError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if user == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"ip", utils.GetClientIP(r),
				)
				writeError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests unless the session belongs to the
// configured admin account.
func RequireAdmin(db *sql.DB, adminUsername string) func(http.Handler) http.Handler {
	requireAuth := RequireAuth(db)
	return func(next http.Handler) http.Handler {
		return requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFrom(r.Context())
			if adminUsername == "" || user == nil || user.Username != adminUsername {
				slog.Warn("admin access denied",
					"path", r.URL.Path,
					"ip", utils.GetClientIP(r),
				)
				writeError(w, "Admin access required", "FORBIDDEN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

package middleware

import (
	"context"
	"net/http"

	"github.com/utafrali/farmmarket/pkg/httputil"
	"github.com/utafrali/farmmarket/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	roleKey   contextKeyType = "role"
)

// Headers set by the gateway after it has authenticated the caller.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// Identity copies the gateway identity headers into the request context.
// Requests without X-User-ID pass through as guests.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(HeaderUserID); id != "" {
			ctx = context.WithValue(ctx, userIDKey, id)
			ctx = logger.WithUserID(ctx, id)

			role := r.Header.Get(HeaderRole)
			if role == "" {
				role = "customer"
			}
			ctx = context.WithValue(ctx, roleKey, role)
			ctx = logger.WithRole(ctx, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
				})
				return
			}
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "insufficient permissions"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the caller's user ID, or "" for guests.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RoleFromContext returns the caller's role, or "" for guests.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

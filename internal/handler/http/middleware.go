package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/httputil"
	"github.com/utafrali/farmmarket/pkg/middleware"
)

// ContentTypeJSON rejects request bodies that are declared as anything but JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// identityFrom returns the caller identity placed in the context by
// middleware.Identity. Requests without one are guests.
func identityFrom(r *http.Request) domain.Identity {
	ctx := r.Context()
	return domain.Identity{
		UserID: middleware.UserIDFromContext(ctx),
		Role:   middleware.RoleFromContext(ctx),
	}
}

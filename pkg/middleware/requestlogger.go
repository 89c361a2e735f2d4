package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/farmmarket/pkg/logger"
)

// RequestLogger stores a logger enriched with the request's correlation ID,
// identity and trace IDs in the context; handlers read it with
// logger.FromContext. Mount it after RequestLogging, Tracing and Identity.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

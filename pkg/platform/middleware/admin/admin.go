package admin

import (
	"log/slog"
	"net/http"

	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/requestcontext"
)

// RequireRole admits only principals whose token carries role. It is a coarse
// capability check for global administration routes; per-resource decisions
// still go through the authorization engine.
func RequireRole(role string, responder httputil.Responder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := requestcontext.Principal(ctx)
			if !ok || !principal.HasRole(role) {
				logger.WarnContext(ctx, "role required",
					"role", role,
					"request_id", requestcontext.RequestID(ctx),
				)
				responder.Deny(w, r, http.StatusForbidden, "FORBIDDEN", role+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

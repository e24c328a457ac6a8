package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"boxoffice/internal/account/models"
	"boxoffice/internal/platform/metrics"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/platform/middleware/auth"
	"boxoffice/pkg/platform/middleware/metadata"
	"boxoffice/pkg/platform/middleware/requestid"
	"boxoffice/pkg/platform/middleware/requesttime"
	"boxoffice/pkg/requestcontext"
)

// Stage names, in execution order.
const (
	StageRecover      = "recover"
	StageRequestID    = "request_id"
	StageMetadata     = "client_metadata"
	StageRequestTime  = "request_time"
	StageMetrics      = "metrics"
	StageAuthenticate = "authenticate"
	StageProvision    = "provision"
	StageGate         = "approval_gate"
)

// Stage is one named step of the request pipeline.
type Stage struct {
	Name       string
	Middleware func(http.Handler) http.Handler
}

// Provisioner is satisfied by *service.Accounts.
type Provisioner interface {
	Provision(ctx context.Context, principal requestcontext.VerifiedPrincipal) (*models.Account, bool, error)
}

// Gatekeeper is satisfied by *gate.Gate.
type Gatekeeper interface {
	Middleware(next http.Handler) http.Handler
}

// PipelineConfig assembles the stages. Provisioner and Metrics are optional.
type PipelineConfig struct {
	Verifier    auth.Verifier
	Provisioner Provisioner
	Gate        Gatekeeper
	// Anonymous routes skip authentication. Every entry must also be on the
	// approval gate allow-list or the gate will block it.
	Anonymous []Route
	Metrics   *metrics.HTTP
	Responder httputil.Responder
	Logger    *slog.Logger
}

// Route is an exact method+path pair.
type Route struct {
	Method string
	Path   string
}

// DefaultAnonymousRoutes are the routes served without a bearer token.
func DefaultAnonymousRoutes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/auth/register"},
		{Method: http.MethodGet, Path: "/health"},
		{Method: http.MethodGet, Path: "/api/info"},
	}
}

// Pipeline returns the ordered stages every API request passes through:
//
//	recover → request_id → client_metadata → request_time → metrics →
//	authenticate → provision → approval_gate → handler
//
// Provisioning only ever sees verified subjects, and the gate sees the row
// provisioning created.
func Pipeline(cfg PipelineConfig) []Stage {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stages := []Stage{
		{Name: StageRecover, Middleware: recoverer(cfg.Responder, logger)},
		{Name: StageRequestID, Middleware: requestid.Middleware},
		{Name: StageMetadata, Middleware: metadata.ClientMetadata},
		{Name: StageRequestTime, Middleware: requesttime.Middleware},
	}
	if cfg.Metrics != nil {
		stages = append(stages, Stage{Name: StageMetrics, Middleware: cfg.Metrics.Middleware})
	}
	stages = append(stages, Stage{
		Name:       StageAuthenticate,
		Middleware: authenticate(cfg.Verifier, cfg.Anonymous, cfg.Responder, logger),
	})
	if cfg.Provisioner != nil {
		stages = append(stages, Stage{
			Name:       StageProvision,
			Middleware: provision(cfg.Provisioner, cfg.Responder, logger),
		})
	}
	return append(stages, Stage{Name: StageGate, Middleware: cfg.Gate.Middleware})
}

func authenticate(verifier auth.Verifier, anonymous []Route, responder httputil.Responder, logger *slog.Logger) func(http.Handler) http.Handler {
	open := make(map[Route]struct{}, len(anonymous))
	for _, r := range anonymous {
		open[r] = struct{}{}
	}
	requireAuth := auth.RequireAuth(verifier, responder, logger)

	return func(next http.Handler) http.Handler {
		authed := requireAuth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[Route{Method: r.Method, Path: r.URL.Path}]; ok {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

// provision creates an APPROVED account for verified callers that predate
// the approval workflow. Failure blocks the request.
func provision(p Provisioner, responder httputil.Responder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := requestcontext.Principal(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			_, created, err := p.Provision(ctx, principal)
			if err != nil {
				httputil.LogFailure(ctx, logger, "account provisioning failed", err)
				responder.Error(w, r, err)
				return
			}
			if created {
				logger.InfoContext(ctx, "provisioned account for verified caller",
					"account_id", principal.Subject.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recoverer(responder httputil.Responder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(r.Context(), "panic serving request",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", requestcontext.RequestID(r.Context()),
					)
					responder.Error(w, r, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Package gate enforces the business-trust state of an account on every
// request after identity verification and before any handler runs.
package gate

import (
	"context"
	"log/slog"
	"net/http"

	"boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/requestcontext"
)

// Denial codes returned in the error body.
const (
	CodePending     = "APPROVAL_PENDING"
	CodeRejected    = "APPROVAL_REJECTED"
	CodeUnknown     = "APPROVAL_UNKNOWN"
	CodeUnavailable = "APPROVAL_UNAVAILABLE"
)

// AccountReader resolves accounts with legacy status normalization applied.
// A missing account is (nil, nil).
type AccountReader interface {
	Find(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Decision is the outcome of evaluating one request.
type Decision struct {
	Allow   bool
	Status  int
	Code    string
	Message string
	Reason  string
}

var allow = Decision{Allow: true}

type Gate struct {
	accounts  AccountReader
	audit     AuditRecorder
	responder httputil.Responder
	logger    *slog.Logger
	bypass    map[routeKey]Route
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(g *Gate) {
		g.audit = r
	}
}

func WithResponder(r httputil.Responder) Option {
	return func(g *Gate) {
		g.responder = r
	}
}

// WithAllowList replaces DefaultAllowList.
func WithAllowList(routes []Route) Option {
	return func(g *Gate) {
		g.bypass = indexRoutes(routes)
	}
}

func New(accounts AccountReader, opts ...Option) *Gate {
	g := &Gate{
		accounts: accounts,
		bypass:   indexRoutes(DefaultAllowList()),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Bypassed reports whether method+path is on the allow-list.
func (g *Gate) Bypassed(method, path string) bool {
	_, ok := g.bypass[routeKey{method: method, path: path}]
	return ok
}

// Middleware requires a verified principal in the request context for any
// non-bypassed route; its absence is a block.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Bypassed(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		principal, ok := requestcontext.Principal(ctx)
		if !ok {
			g.logger.ErrorContext(ctx, "approval gate reached without a verified principal",
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			g.responder.Deny(w, r, http.StatusForbidden, CodeUnknown, "approval status could not be determined")
			return
		}

		d := g.Evaluate(ctx, principal.Subject, r.Method+" "+r.URL.Path)
		if !d.Allow {
			g.responder.DenyWithReason(w, r, d.Status, d.Code, d.Message, d.Reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Evaluate decides for accountID. Only an APPROVED account or one with no
// local row passes; every other outcome blocks.
func (g *Gate) Evaluate(ctx context.Context, accountID id.AccountID, resource string) Decision {
	a, err := g.accounts.Find(ctx, accountID)
	if err != nil {
		g.logger.ErrorContext(ctx, "approval gate could not load account",
			"account_id", accountID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			return Decision{
				Status:  http.StatusServiceUnavailable,
				Code:    CodeUnavailable,
				Message: "approval status temporarily unavailable",
			}
		}
		return unknown()
	}
	if a == nil {
		// provisioning owns account creation; the gate never fabricates one
		return allow
	}

	switch a.Status {
	case models.ApprovalStatusApproved:
		return allow
	case models.ApprovalStatusPending:
		g.violation(ctx, a, resource)
		return Decision{
			Status:  http.StatusForbidden,
			Code:    CodePending,
			Message: "account is pending approval",
		}
	case models.ApprovalStatusRejected:
		g.violation(ctx, a, resource)
		return Decision{
			Status:  http.StatusForbidden,
			Code:    CodeRejected,
			Message: "account has been rejected",
			Reason:  a.RejectionReason,
		}
	default:
		g.logger.ErrorContext(ctx, "approval gate saw unrecognized status",
			"account_id", a.ID.String(),
			"status", a.Status.String(),
		)
		return unknown()
	}
}

func unknown() Decision {
	return Decision{
		Status:  http.StatusForbidden,
		Code:    CodeUnknown,
		Message: "approval status could not be determined",
	}
}

func (g *Gate) violation(ctx context.Context, a *models.Account, resource string) {
	g.logger.WarnContext(ctx, "approval gate blocked request",
		"account_id", a.ID.String(),
		"status", a.Status.String(),
		"resource", resource,
		"request_id", requestcontext.RequestID(ctx),
	)
	if g.audit == nil {
		return
	}
	g.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprovalGateViolation,
		Actor:        a.ID,
		Target:       &a.ID,
		ResourceType: "route",
		ResourceID:   resource,
		Details:      "status=" + a.Status.String(),
	})
}

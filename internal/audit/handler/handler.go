// Package handler serves the administrative audit trail view.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/audit"
	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/platform/middleware/admin"
	"boxoffice/pkg/platform/sentinel"
)

// Reader is satisfied by *audit.Sink.
type Reader interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
}

type Handler struct {
	logger    *slog.Logger
	reader    Reader
	responder httputil.Responder
}

func New(reader Reader, responder httputil.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reader: reader, responder: responder}
}

// Register mounts GET /api/admin/audit for ADMIN principals.
func (h *Handler) Register(r chi.Router) {
	r.With(admin.RequireRole(string(identity.RoleAdmin), h.responder, h.logger)).
		Get("/api/admin/audit", h.handleList)
}

type RecordResponse struct {
	ID           string         `json:"id"`
	Action       audit.Action   `json:"action"`
	Severity     audit.Severity `json:"severity"`
	Actor        id.AccountID   `json:"actor_id"`
	Target       *id.AccountID  `json:"target_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	EventID      *id.EventID    `json:"event_id,omitempty"`
	Details      string         `json:"details,omitempty"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type ListResponse struct {
	Records []RecordResponse `json:"records"`
}

// parseFilter reads repeated ?action=, an optional ?actor= and ?limit=.
func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var f audit.Filter
	for _, raw := range q["action"] {
		a := audit.Action(raw)
		if !a.IsValid() {
			return audit.Filter{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown audit action %q", raw)
		}
		f.Actions = append(f.Actions, a)
	}
	if raw := q.Get("actor"); raw != "" {
		actor, err := id.ParseAccountID(raw)
		if err != nil {
			return audit.Filter{}, err
		}
		f.Actor = &actor
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
		}
		f.Limit = limit
	}
	return f, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, "invalid audit filter", err)
		return
	}

	records, err := h.reader.List(ctx, filter)
	if err != nil {
		code := dErrors.CodeInternal
		if sentinel.IsUnavailable(err) {
			code = dErrors.CodeUnavailable
		}
		h.fail(w, r, "audit list failed", dErrors.Wrap(err, code, "failed to list audit records"))
		return
	}

	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, RecordResponse{
			ID:           rec.ID,
			Action:       rec.Action,
			Severity:     rec.Severity,
			Actor:        rec.Actor,
			Target:       rec.Target,
			ResourceType: rec.ResourceType,
			ResourceID:   rec.ResourceID,
			EventID:      rec.EventID,
			Details:      rec.Details,
			ClientIP:     rec.ClientIP,
			UserAgent:    rec.UserAgent,
			RequestID:    rec.RequestID,
			CreatedAt:    rec.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Records: out})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httputil.LogFailure(r.Context(), h.logger, msg, err)
	h.responder.Error(w, r, err)
}

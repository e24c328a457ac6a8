// Package handler exposes event staff management and the caller's access
// view over HTTP. Every decision is made by the authorization engine behind
// the service; directory roles are never consulted here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/event/models"
	"boxoffice/internal/event/service"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/httputil"
)

// Service is satisfied by *service.Service.
type Service interface {
	ListStaff(ctx context.Context, caller id.AccountID, eventID id.EventID) ([]models.StaffGrant, error)
	RevokeStaff(ctx context.Context, caller id.AccountID, eventID id.EventID, staffID id.AccountID) error
	AccessFor(ctx context.Context, caller id.AccountID, eventID id.EventID) service.Access
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	responder httputil.Responder
}

func New(svc Service, responder httputil.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: svc, responder: responder}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/events/{eventID}", func(r chi.Router) {
		r.Get("/staff", h.handleListStaff)
		r.Delete("/staff/{accountID}", h.handleRevokeStaff)
		r.Get("/access", h.handleAccess)
	})
}

type StaffGrantResponse struct {
	AccountID id.AccountID `json:"account_id"`
	GrantedAt time.Time    `json:"granted_at"`
}

type StaffListResponse struct {
	EventID id.EventID           `json:"event_id"`
	Staff   []StaffGrantResponse `json:"staff"`
}

type AccessResponse struct {
	EventID   id.EventID `json:"event_id"`
	Organizer bool       `json:"organizer"`
	Staff     bool       `json:"staff"`
}

func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, eventID, err := h.scope(r)
	if err != nil {
		h.fail(w, r, "invalid staff list request", err)
		return
	}

	grants, err := h.service.ListStaff(ctx, caller, eventID)
	if err != nil {
		h.fail(w, r, "staff list failed", err)
		return
	}

	staff := make([]StaffGrantResponse, 0, len(grants))
	for _, g := range grants {
		staff = append(staff, StaffGrantResponse{AccountID: g.AccountID, GrantedAt: g.GrantedAt})
	}
	httputil.WriteJSON(w, http.StatusOK, StaffListResponse{EventID: eventID, Staff: staff})
}

func (h *Handler) handleRevokeStaff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, eventID, err := h.scope(r)
	if err != nil {
		h.fail(w, r, "invalid staff revoke request", err)
		return
	}
	staffID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, "invalid staff revoke request", err)
		return
	}

	if err := h.service.RevokeStaff(ctx, caller, eventID, staffID); err != nil {
		h.fail(w, r, "staff revoke failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, eventID, err := h.scope(r)
	if err != nil {
		h.fail(w, r, "invalid access request", err)
		return
	}

	access := h.service.AccessFor(ctx, caller, eventID)
	httputil.WriteJSON(w, http.StatusOK, AccessResponse{
		EventID:   access.EventID,
		Organizer: access.Organizer,
		Staff:     access.Staff,
	})
}

func (h *Handler) scope(r *http.Request) (id.AccountID, id.EventID, error) {
	caller, err := httputil.Caller(r)
	if err != nil {
		return id.AccountID{}, id.EventID{}, err
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		return id.AccountID{}, id.EventID{}, err
	}
	return caller.Subject, eventID, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httputil.LogFailure(r.Context(), h.logger, msg, err)
	h.responder.Error(w, r, err)
}

// Package handler exposes the caller's own account and the admin approval
// queue over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/account/models"
	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/platform/middleware/admin"
)

// Accounts is satisfied by *service.Accounts.
type Accounts interface {
	Find(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// Approvals is satisfied by *service.ApprovalService.
type Approvals interface {
	Approve(ctx context.Context, adminID, accountID id.AccountID) (*models.Account, error)
	Reject(ctx context.Context, adminID, accountID id.AccountID, reason string) (*models.Account, error)
	List(ctx context.Context, status models.ApprovalStatus, page id.PageRequest) (id.Page[*models.Account], error)
}

type Handler struct {
	logger    *slog.Logger
	accounts  Accounts
	approvals Approvals
	responder httputil.Responder
}

func New(accounts Accounts, approvals Approvals, responder httputil.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		accounts:  accounts,
		approvals: approvals,
		responder: responder,
	}
}

// Register mounts GET /api/me and the ADMIN-only approval routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/me", h.handleMe)

	r.Route("/api/admin/accounts", func(r chi.Router) {
		r.Use(admin.RequireRole(string(identity.RoleAdmin), h.responder, h.logger))
		r.Get("/", h.handleList)
		r.Post("/{accountID}/approve", h.handleApprove)
		r.Post("/{accountID}/reject", h.handleReject)
	})
}

type AccountResponse struct {
	ID              id.AccountID          `json:"id"`
	Email           string                `json:"email"`
	DisplayName     string                `json:"display_name"`
	Status          models.ApprovalStatus `json:"approval_status"`
	ApprovedAt      *time.Time            `json:"approved_at,omitempty"`
	ApprovedBy      *id.AccountID         `json:"approved_by,omitempty"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		Email:           a.Email,
		DisplayName:     a.DisplayName,
		Status:          a.Status,
		ApprovedAt:      a.ApprovedAt,
		ApprovedBy:      a.ApprovedBy,
		RejectionReason: a.RejectionReason,
		CreatedAt:       a.CreatedAt,
	}
}

type MeResponse struct {
	Subject id.AccountID     `json:"subject"`
	Email   string           `json:"email"`
	Roles   []identity.Role  `json:"roles"`
	Account *AccountResponse `json:"account,omitempty"`
}

type ListResponse struct {
	Items []AccountResponse `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.Caller(r)
	if err != nil {
		h.fail(w, r, "me without principal", err)
		return
	}

	a, err := h.accounts.Find(ctx, caller.Subject)
	if err != nil {
		h.fail(w, r, "failed to load own account", err)
		return
	}

	resp := MeResponse{
		Subject: caller.Subject,
		Email:   caller.Email,
		Roles:   identity.RolesOf(caller.Roles),
	}
	if a != nil {
		ar := toAccountResponse(a)
		resp.Account = &ar
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.ApprovalStatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseApprovalStatus(raw)
		if err != nil {
			h.fail(w, r, "invalid status filter", err)
			return
		}
		status = parsed
	}

	page, err := h.approvals.List(ctx, status, httputil.PageFromQuery(r))
	if err != nil {
		h.fail(w, r, "failed to list accounts", err)
		return
	}

	items := make([]AccountResponse, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, toAccountResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, accountID, err := h.target(r)
	if err != nil {
		h.fail(w, r, "invalid approve request", err)
		return
	}

	a, err := h.approvals.Approve(ctx, caller, accountID)
	if err != nil {
		h.fail(w, r, "account approval failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, accountID, err := h.target(r)
	if err != nil {
		h.fail(w, r, "invalid reject request", err)
		return
	}
	req, err := httputil.DecodeJSON[RejectRequest](r)
	if err != nil {
		h.fail(w, r, "invalid reject request", err)
		return
	}

	a, err := h.approvals.Reject(ctx, caller, accountID, req.Reason)
	if err != nil {
		h.fail(w, r, "account rejection failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) target(r *http.Request) (id.AccountID, id.AccountID, error) {
	caller, err := httputil.Caller(r)
	if err != nil {
		return id.AccountID{}, id.AccountID{}, err
	}
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		return id.AccountID{}, id.AccountID{}, err
	}
	return caller.Subject, accountID, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httputil.LogFailure(r.Context(), h.logger, msg, err)
	h.responder.Error(w, r, err)
}

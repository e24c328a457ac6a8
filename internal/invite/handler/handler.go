// Package handler exposes invite issuance, listing, revocation and
// redemption over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	"boxoffice/internal/invite/service"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Redeemer,Issuer

// Redeemer is satisfied by *service.Service.
type Redeemer interface {
	Redeem(ctx context.Context, userID id.AccountID, code string) (*models.RedemptionResult, error)
}

// Issuer is satisfied by *service.Issuer.
type Issuer interface {
	Issue(ctx context.Context, caller id.AccountID, roles []identity.Role, req service.GenerateRequest) (*models.InviteCode, error)
	Revoke(ctx context.Context, caller id.AccountID, roles []identity.Role, codeID id.InviteCodeID, reason string) (*models.InviteCode, error)
	ListMine(ctx context.Context, caller id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error)
}

type Handler struct {
	logger    *slog.Logger
	redeemer  Redeemer
	issuer    Issuer
	responder httputil.Responder
}

func New(redeemer Redeemer, issuer Issuer, responder httputil.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		redeemer:  redeemer,
		issuer:    issuer,
		responder: responder,
	}
}

// Register mounts the invite routes. POST /api/invites/redeem is reachable by
// PENDING accounts; the others sit behind the approval gate.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/invites", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Get("/", h.handleListMine)
		r.Post("/redeem", h.handleRedeem)
		r.Post("/{inviteID}/revoke", h.handleRevoke)
	})
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.Caller(r)
	if err != nil {
		h.fail(w, r, "invite redemption without principal", err)
		return
	}

	req, err := httputil.DecodeJSON[RedeemRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.fail(w, r, "invalid redeem request", err)
		return
	}

	res, err := h.redeemer.Redeem(ctx, caller.Subject, req.Code)
	if err != nil {
		h.fail(w, r, "invite redemption failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRedeemResponse(res))
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.Caller(r)
	if err != nil {
		h.fail(w, r, "invite issue without principal", err)
		return
	}

	req, err := httputil.DecodeJSON[IssueRequest](r)
	if err != nil {
		h.fail(w, r, "invalid issue request", err)
		return
	}
	gen, err := req.ToGenerate()
	if err != nil {
		h.fail(w, r, "invalid issue request", err)
		return
	}

	code, err := h.issuer.Issue(ctx, caller.Subject, identity.RolesOf(caller.Roles), gen)
	if err != nil {
		h.fail(w, r, "invite issue failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInviteResponse(code))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.Caller(r)
	if err != nil {
		h.fail(w, r, "invite list without principal", err)
		return
	}

	page, err := h.issuer.ListMine(ctx, caller.Subject, httputil.PageFromQuery(r))
	if err != nil {
		h.fail(w, r, "invite list failed", err)
		return
	}

	items := make([]InviteResponse, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, toInviteResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.Caller(r)
	if err != nil {
		h.fail(w, r, "invite revoke without principal", err)
		return
	}

	codeID, err := id.ParseInviteCodeID(chi.URLParam(r, "inviteID"))
	if err != nil {
		h.fail(w, r, "invalid invite id", err)
		return
	}
	req, err := httputil.DecodeJSON[RevokeRequest](r)
	if err != nil {
		h.fail(w, r, "invalid revoke request", err)
		return
	}

	code, err := h.issuer.Revoke(ctx, caller.Subject, identity.RolesOf(caller.Roles), codeID, req.Reason)
	if err != nil {
		h.fail(w, r, "invite revoke failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInviteResponse(code))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httputil.LogFailure(r.Context(), h.logger, msg, err)
	h.responder.Error(w, r, err)
}

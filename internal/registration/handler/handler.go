// Package handler exposes self-service registration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/registration"
	"boxoffice/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is satisfied by *registration.Orchestrator.
type Service interface {
	Register(ctx context.Context, req registration.Request) (*registration.Result, error)
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	responder httputil.Responder
}

func New(service Service, responder httputil.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, responder: responder}
}

// Register mounts POST /api/auth/register. The route is public; it must stay
// on the approval gate allow-list.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/register", h.handleRegister)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[registration.Request](r)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "invalid registration request", err)
		h.responder.Error(w, r, err)
		return
	}

	res, err := h.service.Register(ctx, *req)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "registration failed", err)
		h.responder.Error(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, res)
}

// Package httptransport assembles the HTTP surface: the staged request
// pipeline, every domain handler mounted behind it, and /metrics beside it.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/httputil"
)

// Registrar mounts a set of routes. Every domain handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

type RouterConfig struct {
	Stages    []Stage
	Handlers  []Registrar
	Metrics   http.Handler
	Responder httputil.Responder
}

// NewRouter mounts Handlers behind Stages. /metrics, when set, is served
// outside the pipeline for the scraper.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		cfg.Responder.Error(w, req, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		cfg.Responder.Deny(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		for _, s := range cfg.Stages {
			r.Use(s.Middleware)
		}
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})
	return r
}

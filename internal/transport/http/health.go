package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boxoffice/pkg/platform/httputil"
)

const probeTimeout = 2 * time.Second

// Probe reports a dependency's health. A nil error means healthy.
type Probe func(ctx context.Context) error

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter is satisfied by *identity.Guarded.
type HealthReporter interface {
	Healthy() bool
}

var errCircuitOpen = errors.New("circuit open")

func PingProbe(p Pinger) Probe {
	return p.PingContext
}

func BreakerProbe(h HealthReporter) Probe {
	return func(context.Context) error {
		if !h.Healthy() {
			return errCircuitOpen
		}
		return nil
	}
}

// Info is the public service metadata served on /api/info.
type Info struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Status serves GET /health and GET /api/info.
type Status struct {
	info   Info
	probes map[string]Probe
	logger *slog.Logger
}

func NewStatus(info Info, probes map[string]Probe, logger *slog.Logger) *Status {
	if logger == nil {
		logger = slog.Default()
	}
	return &Status{info: info, probes: probes, logger: logger}
}

func (s *Status) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/api/info", s.handleInfo)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth returns 503 when any probe fails. Probe errors are logged,
// never echoed.
func (s *Status) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(s.probes))}
	status := http.StatusOK
	for name, probe := range s.probes {
		if err := probe(ctx); err != nil {
			s.logger.WarnContext(ctx, "health probe failed", "probe", name, "error", err)
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	httputil.WriteJSON(w, status, resp)
}

func (s *Status) handleInfo(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.info)
}

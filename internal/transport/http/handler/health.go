package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler takes the named dependencies checked by the "ready" action.
// Nil pingers are skipped.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, p := range h.deps {
			if p == nil {
				continue
			}
			if err := p.Health(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, name+" unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// Package health exposes liveness and readiness endpoints. Readiness probes
// the database and Redis with short timeouts so a wedged dependency cannot
// stall the check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Handler serves the health endpoints.
type Handler struct {
	DB      Probe
	Redis   Probe
	Timeout time.Duration
}

func (h Handler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 500 * time.Millisecond
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"db":    h.run(r.Context(), h.DB),
		"redis": h.run(r.Context(), h.Redis),
	}
	code := http.StatusOK
	for _, s := range status {
		if s != "ok" {
			code = http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) run(ctx context.Context, probe Probe) string {
	if probe == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()
	if err := probe(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDisabled  HealthStatus = "disabled"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Probe reports nil when the component is usable.
type Probe func(ctx context.Context) error

type probe struct {
	name string
	run  Probe
	// critical probes turn the service unhealthy, the rest only degrade it
	critical bool
}

// HealthHandler reports postgres plus any optional backends. Credentials and
// passcodes live in postgres, so it is the only critical component; redis
// and the broker have in-process fallbacks.
type HealthHandler struct {
	db      *sqlx.DB
	probes  []probe
	timeout time.Duration
}

func NewHealthHandler(db *sqlx.DB, rdb *redis.Client) *HealthHandler {
	h := &HealthHandler{db: db, timeout: 2 * time.Second}
	h.probes = append(h.probes, probe{name: "postgres", run: db.PingContext, critical: true})
	if rdb != nil {
		h.AddProbe("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		h.AddProbe("redis", nil)
	}
	return h
}

// AddProbe registers a non-critical component. A nil probe reports disabled.
func (h *HealthHandler) AddProbe(name string, p Probe) {
	h.probes = append(h.probes, probe{name: name, run: p})
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:     HealthHealthy,
		CheckedAt:  time.Now().UTC(),
		Components: make(map[string]CheckEntry, len(h.probes)),
	}
	for _, p := range h.probes {
		entry := runProbe(ctx, p.run)
		resp.Components[p.name] = entry
		if entry.Status != HealthUnhealthy {
			continue
		}
		if p.critical {
			resp.Status = HealthUnhealthy
		} else if resp.Status == HealthHealthy {
			resp.Status = HealthDegraded
		}
	}

	if pg := resp.Components["postgres"]; pg.Status == HealthHealthy {
		stats := h.db.Stats()
		pg.Details = map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		}
		resp.Components["postgres"] = pg
	}

	status := http.StatusOK
	if resp.Status == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, status, resp)
}

func runProbe(ctx context.Context, p Probe) CheckEntry {
	if p == nil {
		return CheckEntry{Status: HealthDisabled}
	}
	start := time.Now()
	err := p(ctx)
	entry := CheckEntry{Status: HealthHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = "unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Message = "timed out"
		}
	}
	return entry
}

func writeHealth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rickgao/eludris-client/internal/archive"
	"github.com/rickgao/eludris-client/internal/gateway"
	"github.com/rickgao/eludris-client/internal/version"
)

type gatewayStatus interface {
	State() gateway.State
	HeartbeatLatency() time.Duration
}

type pinger interface {
	Ping(ctx context.Context) error
}

type archiveStatus interface {
	Stats() archive.Stats
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Components map[string]any `json:"components"`
}

// healthHandler reports gateway state, database reachability and archive
// counters. A missing database makes the process unhealthy; a gateway that
// is not running makes it degraded.
func healthHandler(gw gatewayStatus, db pinger, writer archiveStatus, consumerErrors *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := healthResponse{
			Status:     "healthy",
			Version:    version.Version,
			Components: make(map[string]any),
		}

		state := gw.State()
		health.Components["gateway"] = map[string]any{
			"state":      state.String(),
			"latency_ms": gw.HeartbeatLatency().Milliseconds(),
		}
		if state != gateway.StateRunning {
			health.Status = "degraded"
		}

		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		stats := writer.Stats()
		health.Components["archive"] = map[string]any{
			"received":        stats.Received,
			"inserts":         stats.Inserts,
			"conflicts":       stats.Conflicts,
			"errors":          stats.Errors,
			"dropped":         stats.Dropped,
			"pending":         stats.Pending,
			"consumer_errors": consumerErrors.Load(),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}

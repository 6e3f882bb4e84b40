package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
	ComponentStatusDisabled ComponentStatus = "disabled"
)

const healthCheckTimeout = 2 * time.Second

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

// StoreDetails reports current collection sizes.
type StoreDetails struct {
	LogEntries    int `json:"log_entries"`
	FrequencyKeys int `json:"frequency_keys"`
}

// pinger is satisfied by the audit store and the snapshot exporter.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth reports every component. Only a down component turns the
// response into a 503; disabled ones are informational.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// handleReady is the readiness probe: the audit database must answer when
// auditing is on, since mutations would otherwise be unrecorded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.audit.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "not_ready",
				"message": "audit database unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleLive is the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	frequencyKeys, logEntries := s.store.Sizes()

	health := Health{
		Timestamp: time.Now().UTC(),
		Version:   s.build.Version,
		Components: map[string]ComponentHealth{
			"store": {
				Status:  ComponentStatusUp,
				Details: StoreDetails{LogEntries: logEntries, FrequencyKeys: frequencyKeys},
			},
		},
	}

	var audit, snapshots pinger
	if s.audit != nil {
		audit = s.audit
	}
	if s.snapshots != nil {
		snapshots = s.snapshots
	}
	health.Components["audit_db"] = checkComponent(ctx, audit, "audit database", 1000)
	health.Components["snapshot_storage"] = checkComponent(ctx, snapshots, "snapshot storage", 2000)

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkComponent pings p and grades the result; slowMs marks it degraded.
func checkComponent(ctx context.Context, p pinger, name string, slowMs int64) ComponentHealth {
	if p == nil {
		return ComponentHealth{Status: ComponentStatusDisabled, Message: name + " not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: name + " check failed: " + err.Error(),
		}
	}
	latency := time.Since(start).Milliseconds()

	if latency > slowMs {
		return ComponentHealth{
			Status:    ComponentStatusDegraded,
			Message:   name + " latency high",
			LatencyMs: float64(latency),
		}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   name + " healthy",
		LatencyMs: float64(latency),
	}
}

func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}

package server

import (
	"context"
	"net/http"
	"strconv"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AdminStats is the body of GET /admin/stats.
type AdminStats struct {
	Build     BuildInfo             `json:"build"`
	Metrics   MetricsSnapshot       `json:"metrics"`
	Store     StoreDetails          `json:"store"`
	Breakers  []CircuitBreakerStats `json:"circuit_breakers"`
	UptimeSec int64                 `json:"uptime_seconds"`
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/stats", s.handleAdminStats)
	mux.HandleFunc("POST /admin/snapshot", s.handleAdminSnapshot)
	mux.HandleFunc("GET /admin/audit", s.handleAdminAudit)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	frequencyKeys, logEntries := s.store.Sizes()

	stats := AdminStats{
		Build:     s.build,
		Metrics:   s.metrics.Snapshot(),
		Store:     StoreDetails{LogEntries: logEntries, FrequencyKeys: frequencyKeys},
		Breakers:  make([]CircuitBreakerStats, 0, 2),
		UptimeSec: int64(s.uptime().Seconds()),
	}
	if b, ok := s.audit.(interface{ Breaker() *CircuitBreaker }); ok {
		stats.Breakers = append(stats.Breakers, b.Breaker().Stats())
	}
	if s.snapshots != nil {
		stats.Breakers = append(stats.Breakers, s.snapshots.Breaker().Stats())
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleAdminSnapshot exports the collections to object storage now.
func (s *Server) handleAdminSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSONError(w, http.StatusServiceUnavailable, ErrSnapshotDisabled.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotUploadTimeout)
	defer cancel()

	info, err := s.snapshots.Export(ctx)
	s.metrics.RecordSnapshot(err == nil)
	if err != nil {
		Error("snapshot export failed", map[string]any{
			"rid": RequestIDFromContext(r.Context()),
		}, err)
		writeJSONError(w, http.StatusBadGateway, "snapshot export failed")
		return
	}

	s.recordAudit(r, AuditActionSnapshotExport, info.Key)
	Info("snapshot exported", map[string]any{
		"key":   info.Key,
		"bytes": info.SizeBytes,
	})
	writeJSON(w, http.StatusCreated, info)
}

// handleAdminAudit lists the most recent audit events.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSONError(w, http.StatusServiceUnavailable, ErrAuditDisabled.Error())
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		Error("audit query failed", nil, err)
		writeJSONError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// AuditAction names the mutation being recorded.
type AuditAction string

const (
	AuditActionLogAppend          AuditAction = "log_append"
	AuditActionFrequencyIncrement AuditAction = "frequency_increment"
	AuditActionSnapshotExport     AuditAction = "snapshot_export"
)

// ErrAuditDisabled is returned by admin routes when no database is configured.
var ErrAuditDisabled = errors.New("audit trail is not configured")

const auditWriteTimeout = 2 * time.Second

// AuditEvent is one row of the audit trail.
type AuditEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	Value     string      `json:"value"`
	RequestID string      `json:"request_id,omitempty"`
	IPAddress string      `json:"ip_address,omitempty"`
}

// AuditRecorder persists and lists audit events.
type AuditRecorder interface {
	Record(ctx context.Context, ev AuditEvent) error
	Recent(ctx context.Context, limit int) ([]AuditEvent, error)
	Ping(ctx context.Context) error
}

// AuditStore writes audit events to the audit_events table.
type AuditStore struct {
	db      *sql.DB
	breaker *CircuitBreaker
}

// NewAuditStore wraps an open connection whose schema is already migrated.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{
		db:      db,
		breaker: NewCircuitBreaker("audit_db", 5, 30*time.Second),
	}
}

// Record inserts ev, filling in ID and Timestamp when empty.
func (a *AuditStore) Record(ctx context.Context, ev AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	const query = `
		INSERT INTO audit_events (id, occurred_at, action, value, request_id, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	// Only errors that say the database is unreachable or overloaded count
	// against the breaker.
	var rejected error
	err := a.breaker.Execute(func() error {
		_, err := a.db.ExecContext(ctx, query,
			ev.ID,
			ev.Timestamp,
			string(ev.Action),
			pgText(ev.Value),
			nullString(pgText(ev.RequestID)),
			nullString(pgText(ev.IPAddress)),
		)
		if isStatementError(err) || errors.Is(err, context.Canceled) {
			rejected = err
			return nil
		}
		return err
	})
	if rejected != nil {
		err = rejected
	}
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (a *AuditStore) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	const query = `
		SELECT id, occurred_at, action, value, request_id, ip_address
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]AuditEvent, 0, limit)
	for rows.Next() {
		var (
			ev        AuditEvent
			action    string
			requestID sql.NullString
			ip        sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &action, &ev.Value, &requestID, &ip); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = AuditAction(action)
		ev.RequestID = requestID.String
		ev.IPAddress = ip.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Ping checks connectivity.
func (a *AuditStore) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Breaker exposes the breaker for stats reporting.
func (a *AuditStore) Breaker() *CircuitBreaker {
	return a.breaker
}

// pgText makes s storable in a Postgres TEXT column, which refuses NUL
// bytes and invalid UTF-8.
func pgText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// isStatementError reports whether err is the server refusing a statement
// (bad data, constraint violation) rather than a connection or resource
// problem.
func isStatementError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if len(pgErr.Code) < 2 {
		return true
	}
	switch pgErr.Code[:2] {
	case "08", "53", "57", "58":
		return false
	}
	return true
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// recordAudit writes an audit event for a mutation. Failures are logged and
// counted but never change the response.
func (s *Server) recordAudit(r *http.Request, action AuditAction, value string) {
	if s.audit == nil {
		return
	}

	// A client that hangs up must not abort the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditWriteTimeout)
	defer cancel()

	rid := RequestIDFromContext(r.Context())
	err := s.audit.Record(ctx, AuditEvent{
		Action:    action,
		Value:     value,
		RequestID: rid,
		IPAddress: s.ips.clientIP(r),
	})
	s.metrics.RecordAudit(err == nil)
	if err != nil {
		Warn("audit write failed", map[string]any{
			"rid":    rid,
			"action": string(action),
			"error":  err.Error(),
		})
	}
}

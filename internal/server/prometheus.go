// prometheus.go - Prometheus text exposition of service metrics
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// handleMetrics writes counters and collection gauges in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.Snapshot()
	frequencyKeys, logEntries := s.store.Sizes()

	var out strings.Builder

	writeMetric(&out, "hello_info", "gauge", "Application version info",
		fmt.Sprintf("hello_info{version=\"%s\",commit=\"%s\"} 1",
			prometheusLabel(s.build.Version), prometheusLabel(s.build.Commit)))

	writeMetric(&out, "hello_requests_total", "counter", "Total number of HTTP requests",
		fmt.Sprintf("hello_requests_total %d", snapshot.RequestsTotal))

	errLines := []string{
		fmt.Sprintf("hello_request_errors_total{class=\"4xx\"} %d", snapshot.RequestErrors4xx),
		fmt.Sprintf("hello_request_errors_total{class=\"5xx\"} %d", snapshot.RequestErrors5xx),
	}
	writeMetric(&out, "hello_request_errors_total", "counter", "HTTP requests answered with an error status", errLines...)

	routeLines := make([]string, 0, len(snapshot.Routes))
	for _, rm := range snapshot.Routes {
		routeLines = append(routeLines, fmt.Sprintf("hello_route_requests_total{route=\"%s\"} %d",
			prometheusLabel(rm.Route), rm.RequestsTotal))
	}
	writeMetric(&out, "hello_route_requests_total", "counter", "HTTP requests per route pattern", routeLines...)

	writeMetric(&out, "hello_greetings_total", "counter", "Greetings served",
		fmt.Sprintf("hello_greetings_total %d", snapshot.GreetingsTotal))
	writeMetric(&out, "hello_log_appends_total", "counter", "Strings appended to the log",
		fmt.Sprintf("hello_log_appends_total %d", snapshot.LogAppendsTotal))
	writeMetric(&out, "hello_frequency_increments_total", "counter", "Frequency table increments",
		fmt.Sprintf("hello_frequency_increments_total %d", snapshot.FrequencyIncrementsTotal))

	writeMetric(&out, "hello_log_entries", "gauge", "Current log length",
		fmt.Sprintf("hello_log_entries %d", logEntries))
	writeMetric(&out, "hello_frequency_keys", "gauge", "Distinct keys in the frequency table",
		fmt.Sprintf("hello_frequency_keys %d", frequencyKeys))

	writeMetric(&out, "hello_audit_writes_total", "counter", "Audit events by outcome",
		fmt.Sprintf("hello_audit_writes_total{outcome=\"ok\"} %d", snapshot.AuditWritesTotal),
		fmt.Sprintf("hello_audit_writes_total{outcome=\"failed\"} %d", snapshot.AuditFailuresTotal))
	writeMetric(&out, "hello_snapshots_total", "counter", "Snapshot exports by outcome",
		fmt.Sprintf("hello_snapshots_total{outcome=\"ok\"} %d", snapshot.SnapshotsTotal),
		fmt.Sprintf("hello_snapshots_total{outcome=\"failed\"} %d", snapshot.SnapshotFailuresTotal))

	writeMetric(&out, "hello_uptime_seconds", "counter", "Application uptime in seconds",
		fmt.Sprintf("hello_uptime_seconds %.0f", time.Since(s.startedAt).Seconds()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.String()))
}

func writeMetric(out *strings.Builder, name, kind, help string, lines ...string) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s %s\n", name, kind)
	for _, l := range lines {
		out.WriteString(l)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}

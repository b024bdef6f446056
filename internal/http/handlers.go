package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks templates and the data backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["editor_sessions"] = s.editors.Len()
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	sec := s.securityDetector.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	tr := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", tr.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", tr.ServerErrors)
	metric("http_request_duration_microseconds_avg", "gauge", "Average response time in microseconds", tr.AverageResponseTime)
	metric("security_suspicious_requests_total", "counter", "Requests flagged as suspicious", sec.SuspiciousRequests)
	metric("security_invalid_ip_total", "counter", "Malformed forwarding headers from trusted proxies", sec.InvalidIPAttempts)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rl.TotalHits)
	metric("rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", rl.ClientCount)
	metric("timetracker_entries_saved_total", "counter", "Entries saved", atomic.LoadInt64(&s.appMetrics.entriesSaved))
	metric("timetracker_entries_deleted_total", "counter", "Entries deleted", atomic.LoadInt64(&s.appMetrics.entriesDeleted))
	metric("timetracker_write_failures_total", "counter", "Entry writes rejected by the backend", atomic.LoadInt64(&s.appMetrics.writeFailures))
	metric("timetracker_login_failures_total", "counter", "Failed sign-in attempts", atomic.LoadInt64(&s.appMetrics.loginFailures))
	metric("timetracker_editor_sessions", "gauge", "Open editor sessions", s.editors.Len())
	metric("timetracker_uptime_seconds", "gauge", "Seconds since start", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

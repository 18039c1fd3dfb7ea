package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"budget/internal/log"
)

const healthMessage = "Budget Tracker API is running"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFileFS(w, r, s.static, "index.html")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(healthMessage))
}

// handleReady pings the store with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				log.NewFields().WithError(err, log.ErrorTypeDatabase).ToSlice()...)
			checks["store"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.tracer.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	sec := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total HTTP requests", tm.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", tm.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_request_duration_ms_sum", "counter", "Sum of request durations in milliseconds", tm.TotalDurationMs)
	metric("users_registered_total", "counter", "Successful registrations", s.metrics.registrations.Load())
	metric("logins_total", "counter", "Successful logins", s.metrics.logins.Load())
	metric("logins_failed_total", "counter", "Rejected logins", s.metrics.failedLogins.Load())
	metric("entries_replaced_total", "counter", "Successful ledger replacements", s.metrics.replaces.Load())
	metric("ai_requests_total", "counter", "Prompts relayed to the assistant", s.metrics.aiRequests.Load())
	metric("ai_requests_failed_total", "counter", "Prompts that failed upstream or validation", s.metrics.aiFailures.Load())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the auth rate limiter", rl.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the auth rate limiter", rl.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as probes", sec.SuspiciousRequests)
	if s.cache != nil {
		cs := s.cache.Stats()
		metric("cache_hits_total", "counter", "Entry cache hits", cs.Hits)
		metric("cache_misses_total", "counter", "Entry cache misses", cs.Misses)
		if cs.Size >= 0 {
			metric("cache_entries", "gauge", "Items held by the entry cache", cs.Size)
		}
	}
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.metrics.started).Seconds()))
}

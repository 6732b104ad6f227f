package http

import (
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	NewJSONResponse().
		Field("status", "ok").
		Field("emailConfigured", s.mailConfigured).
		Field("timestamp", now.UTC().Format(time.RFC3339)).
		Field("uptime", now.Sub(s.started).Round(time.Second).String()).
		Write(w)
}

// handleMetrics reports middleware counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sec := s.securityDetector.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	tr := s.traceMiddleware.GetMetrics()

	NewJSONResponse().
		Field("requests", map[string]int64{
			"total":            tr.TotalRequests,
			"failed":           tr.FailedRequests,
			"last_duration_us": tr.AverageResponseTime,
		}).
		Field("security", map[string]int64{
			"suspicious": sec.SuspiciousRequests,
			"blocked":    sec.BlockedRequests,
		}).
		Field("rate_limit", map[string]int64{
			"hits":    rl.TotalHits,
			"clients": rl.ClientCount,
		}).
		Write(w)
}

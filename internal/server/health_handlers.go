// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package server

import (
	"encoding/json"
	"net/http"

	"github.com/passkeylab/go-passkey-rp/pkg/health"
)

// HealthCheckResponse represents the response for health check endpoints.
type HealthCheckResponse struct {
	// Status is the overall health status
	Status health.Status `json:"status"`
	// Message provides additional context
	Message string `json:"message,omitempty"`
	// Checks contains individual check results (for readiness)
	Checks []health.CheckResult `json:"checks,omitempty"`
}

// LivenessHandler handles GET /health/live requests.
//
// Liveness probes determine if the service is alive and should be restarted.
// This endpoint should ONLY fail if the service is in an unrecoverable state.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Live(r.Context())

	resp := HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, resp, statusCode)
}

// ReadinessHandler handles GET /health/ready requests.
//
// Readiness probes determine if the service can accept traffic. The
// service may be alive but not ready (e.g., database unavailable).
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	overallStatus := health.AggregateStatus(results)

	resp := HealthCheckResponse{
		Status: overallStatus,
		Checks: results,
	}

	statusCode := http.StatusOK
	resp.Message = "All checks passed"
	if overallStatus == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
		resp.Message = "One or more checks failed"
	}

	writeHealthJSON(w, resp, statusCode)
}

// StartupHandler handles GET /health/startup requests.
//
// Startup probes determine if the application has finished initializing.
// The check fails until the server has been started.
func (s *Server) StartupHandler(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Startup(r.Context())

	resp := HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, resp, statusCode)
}

// HealthHandler handles GET /health requests for simple load balancer checks.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.checker.IsHealthy(r.Context()) {
		writeHealthJSON(w, HealthCheckResponse{
			Status:  health.StatusHealthy,
			Message: "Service is healthy",
		}, http.StatusOK)
		return
	}

	writeHealthJSON(w, HealthCheckResponse{
		Status:  health.StatusUnhealthy,
		Message: "Service is unhealthy",
	}, http.StatusServiceUnavailable)
}

func writeHealthJSON(w http.ResponseWriter, resp HealthCheckResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

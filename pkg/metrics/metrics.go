// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package metrics provides Prometheus instrumentation for the relying
// party. It exposes ceremony counters, performance histograms, error
// counters, and resource gauges for monitoring server health.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all relying-party metrics
	Namespace = "passkey_rp"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelBackend    = "backend"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"
)

var (
	// CeremoniesTotal tracks the total number of ceremony operations by
	// ceremony type and status. Both the option-generating and verifying
	// halves count.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of ceremony operations by type and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks the duration of ceremony operations in
	// seconds. Buckets cover signature verification latencies.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of ceremony operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelCeremony},
	)

	// VerificationFailuresTotal tracks rejected ceremonies by failure
	// reason (e.g., "challenge_mismatch", "possible_clone_detected").
	VerificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verification_failures_total",
			Help:      "Total number of rejected ceremonies by failure reason",
		},
		[]string{LabelCeremony, LabelReason},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// Goroutines tracks the current number of goroutines in the server.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	// Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// CredentialsTotal tracks the number of registered credentials per
	// storage backend.
	CredentialsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "credentials_total",
			Help:      "Total number of registered credentials per storage backend",
		},
		[]string{LabelBackend},
	)

	// StoreHealthy indicates whether a storage backend is healthy (1) or unhealthy (0).
	StoreHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "store_healthy",
			Help:      "Indicates whether a storage backend is healthy (1) or unhealthy (0)",
		},
		[]string{LabelBackend},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a ceremony operation with its duration and
// status.
//
// Example:
//
//	start := time.Now()
//	_, err := svc.FinishRegistration(ctx, username, response)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    RecordCeremony(CeremonyRegistration, StatusError, duration)
//	} else {
//	    RecordCeremony(CeremonyRegistration, StatusSuccess, duration)
//	}
func RecordCeremony(ceremony, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordVerificationFailure records a rejected ceremony with the reason
// it was rejected. Reasons should match the HTTP error codes (e.g.,
// "challenge_mismatch", "signature_invalid").
func RecordVerificationFailure(ceremony, reason string) {
	if !enabled.Load() {
		return
	}
	VerificationFailuresTotal.WithLabelValues(ceremony, reason).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// SetCredentialsTotal sets the credential count for a storage backend.
func SetCredentialsTotal(backend string, count float64) {
	if !enabled.Load() {
		return
	}
	CredentialsTotal.WithLabelValues(backend).Set(count)
}

// SetStoreHealth sets the health status of a storage backend.
// healthy=true sets the gauge to 1, healthy=false sets it to 0.
func SetStoreHealth(backend string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	StoreHealthy.WithLabelValues(backend).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

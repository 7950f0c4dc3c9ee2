// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPMiddleware returns an HTTP middleware that records request metrics.
// It tracks request duration and total requests by method and status.
//
// Usage:
//
//	router := chi.NewRouter()
//	router.Use(metrics.HTTPMiddleware)
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Capture the status code
		wrapper := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapper.statusCode)
		RecordHTTPRequest(r.Method, statusCode, duration)
	})
}

// CeremonyMiddleware returns an HTTP middleware that records ceremony
// metrics for the ceremony endpoints. Requests to other paths pass
// through unrecorded.
func CeremonyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ceremony := CeremonyForPath(r.URL.Path)
		if !IsEnabled() || ceremony == "" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapper := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()
		status := StatusSuccess
		if wrapper.statusCode >= 400 {
			status = StatusError
		}
		RecordCeremony(ceremony, status, duration)
	})
}

// CeremonyForPath maps a request path to a ceremony label, or "" for
// non-ceremony paths. Matching is suffix-based so the routes can be
// mounted under any prefix.
func CeremonyForPath(path string) string {
	switch {
	case strings.HasSuffix(path, "registration-options"), strings.HasSuffix(path, "verify-registration"):
		return CeremonyRegistration
	case strings.HasSuffix(path, "authentication-options"), strings.HasSuffix(path, "verify-authentication"):
		return CeremonyAuthentication
	default:
		return ""
	}
}

// responseWriter is a wrapper around http.ResponseWriter that captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

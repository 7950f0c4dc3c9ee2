// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Route paths for the four ceremony operations.
const (
	PathGenerateRegistrationOptions   = "/generate-registration-options"
	PathVerifyRegistration            = "/verify-registration"
	PathGenerateAuthenticationOptions = "/generate-authentication-options"
	PathVerifyAuthentication          = "/verify-authentication"
)

// MountChi mounts the ceremony routes on a chi router.
//
// Example:
//
//	handler := rphttp.NewHandler(svc)
//	r.Route("/webauthn", func(r chi.Router) {
//	    rphttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post(PathGenerateRegistrationOptions, h.GenerateRegistrationOptions)
	r.Post(PathVerifyRegistration, h.VerifyRegistration)
	r.Post(PathGenerateAuthenticationOptions, h.GenerateAuthenticationOptions)
	r.Post(PathVerifyAuthentication, h.VerifyAuthentication)
}

// MountStdlib mounts the ceremony routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash.
//
// Example:
//
//	handler := rphttp.NewHandler(svc)
//	rphttp.MountStdlib(mux, "", handler)
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc(prefix+PathGenerateRegistrationOptions, h.GenerateRegistrationOptions)
	mux.HandleFunc(prefix+PathVerifyRegistration, h.VerifyRegistration)
	mux.HandleFunc(prefix+PathGenerateAuthenticationOptions, h.GenerateAuthenticationOptions)
	mux.HandleFunc(prefix+PathVerifyAuthentication, h.VerifyAuthentication)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the route entries for manual mounting on frameworks not
// directly supported.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: PathGenerateRegistrationOptions, Handler: h.GenerateRegistrationOptions},
		{Method: "POST", Path: PathVerifyRegistration, Handler: h.VerifyRegistration},
		{Method: "POST", Path: PathGenerateAuthenticationOptions, Handler: h.GenerateAuthenticationOptions},
		{Method: "POST", Path: PathVerifyAuthentication, Handler: h.VerifyAuthentication},
	}
}

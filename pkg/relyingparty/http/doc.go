// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package http provides composable HTTP handlers for the WebAuthn
// ceremony operations.
//
// # Usage
//
// Create a handler from a relying-party service and mount it on your
// router:
//
//	svc, _ := relyingparty.NewService(...)
//	handler := rphttp.NewHandler(svc)
//
//	// For chi router:
//	r.Route("/webauthn", func(r chi.Router) {
//	    rphttp.MountChi(r, handler)
//	})
//
//	// For stdlib http.ServeMux:
//	rphttp.MountStdlib(mux, "", handler)
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST /generate-registration-options    - Issue a registration challenge
//	POST /verify-registration              - Verify an attestation response
//	POST /generate-authentication-options  - Issue an authentication challenge
//	POST /verify-authentication            - Verify an assertion response
//
// # Headers
//
// The verification endpoints read the account name from:
//
//	X-Username: the account the response belongs to. When absent, the
//	            handler's default user is assumed.
//
// # Response Format
//
// All responses are JSON. Successful responses include the data
// directly. Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
//
// Verification failures always answer with a 4xx status so callers can
// distinguish a rejected ceremony from a broken server.
package http

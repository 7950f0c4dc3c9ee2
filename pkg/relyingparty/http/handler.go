// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/passkeylab/go-passkey-rp/pkg/metrics"
	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// DefaultUsername is used when an option-generating request does not
// name an account.
const DefaultUsername = "test@example.com"

// DefaultDisplayName is the display name paired with DefaultUsername.
const DefaultDisplayName = "Test User"

// Handler provides HTTP handlers for the four ceremony operations.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service         *relyingparty.Service
	logger          *slog.Logger
	defaultUsername string
	defaultDisplay  string
}

// NewHandler creates a new ceremony HTTP handler.
func NewHandler(service *relyingparty.Service) *Handler {
	return &Handler{
		service:         service,
		logger:          slog.Default(),
		defaultUsername: DefaultUsername,
		defaultDisplay:  DefaultDisplayName,
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// WithDefaultUser overrides the account used when requests do not name
// one.
func (h *Handler) WithDefaultUser(username, displayName string) *Handler {
	h.defaultUsername = username
	h.defaultDisplay = displayName
	return h
}

// GenerateRegistrationOptions handles POST /generate-registration-options
//
// Request body (optional):
//
//	{
//	    "username": "user@example.com",
//	    "display_name": "User Name"
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
func (h *Handler) GenerateRegistrationOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	username, displayName, err := h.resolveUser(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "malformed request body")
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), username, displayName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// VerifyRegistration handles POST /verify-registration
//
// Header: X-Username (optional, defaults to the handler's default user)
// Request body: attestation response from the authenticator
// Response: {"verified": true, "credential_id": "..."}
func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	username := r.Header.Get(HeaderUsername)
	if username == "" {
		username = h.defaultUsername
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	result, err := h.service.FinishRegistration(r.Context(), username, response)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, VerificationResponse{
		Verified:     result.Verified,
		CredentialID: base64.RawURLEncoding.EncodeToString(result.CredentialID),
	})
}

// GenerateAuthenticationOptions handles POST /generate-authentication-options
//
// Request body (optional):
//
//	{
//	    "username": "user@example.com"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions
func (h *Handler) GenerateAuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	username, _, err := h.resolveUser(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "malformed request body")
		return
	}

	options, err := h.service.BeginAuthentication(r.Context(), username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// VerifyAuthentication handles POST /verify-authentication
//
// Header: X-Username (optional, defaults to the handler's default user)
// Request body: assertion response from the authenticator
// Response: {"verified": true}
func (h *Handler) VerifyAuthentication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	username := r.Header.Get(HeaderUsername)
	if username == "" {
		username = h.defaultUsername
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	result, err := h.service.FinishAuthentication(r.Context(), username, response)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, VerificationResponse{
		Verified: result.Verified,
	})
}

// resolveUser extracts the account from the request body, falling back
// to the handler's default user on an empty body. A body that is
// present but not valid JSON is an error.
func (h *Handler) resolveUser(r *http.Request) (username, displayName string, err error) {
	var req GenerateOptionsRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
	}

	username = req.Username
	if username == "" {
		return h.defaultUsername, h.defaultDisplay, nil
	}

	displayName = req.DisplayName
	if displayName == "" {
		displayName = username
	}
	return username, displayName, nil
}

// handleServiceError maps service errors to HTTP responses. Every
// verification failure answers with a 4xx so the caller can always
// distinguish a rejected ceremony from a broken server. Rejections on
// the ceremony routes are counted by failure reason.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := serviceErrorResponse(err)

	switch status {
	case http.StatusServiceUnavailable:
		h.logger.Error("storage unavailable", "path", r.URL.Path, "error", err)
	case http.StatusInternalServerError:
		h.logger.Error("unhandled service error", "path", r.URL.Path, "error", err)
	default:
		if ceremony := metrics.CeremonyForPath(r.URL.Path); ceremony != "" {
			metrics.RecordVerificationFailure(ceremony, code)
		}
	}

	h.writeError(w, status, code, message)
}

// serviceErrorResponse maps a service error to the HTTP status, error
// code, and message of its response.
func serviceErrorResponse(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, relyingparty.ErrNoPendingChallenge):
		return http.StatusBadRequest, ErrorCodeNoPendingChallenge, "no pending challenge for this user"
	case errors.Is(err, relyingparty.ErrChallengeExpired):
		return http.StatusBadRequest, ErrorCodeChallengeExpired, "challenge has expired"
	case errors.Is(err, relyingparty.ErrChallengeMismatch):
		return http.StatusBadRequest, ErrorCodeChallengeMismatch, "response does not match the issued challenge"
	case errors.Is(err, relyingparty.ErrOriginMismatch):
		return http.StatusBadRequest, ErrorCodeOriginMismatch, "response origin is not an allowed origin"
	case errors.Is(err, relyingparty.ErrRelyingPartyMismatch):
		return http.StatusBadRequest, ErrorCodeRelyingPartyMismatch, "response was produced for a different relying party"
	case errors.Is(err, relyingparty.ErrSignatureInvalid):
		return http.StatusBadRequest, ErrorCodeSignatureInvalid, "signature verification failed"
	case errors.Is(err, relyingparty.ErrDuplicateCredential):
		return http.StatusBadRequest, ErrorCodeDuplicateCredential, "credential is already registered"
	case errors.Is(err, relyingparty.ErrUnknownCredential):
		return http.StatusBadRequest, ErrorCodeUnknownCredential, "credential is not registered for this user"
	case errors.Is(err, relyingparty.ErrPossibleClone):
		return http.StatusBadRequest, ErrorCodePossibleClone, "signature counter did not advance, possible cloned authenticator"
	case errors.Is(err, relyingparty.ErrNoCredentials):
		return http.StatusBadRequest, ErrorCodeNoCredentials, "user has no registered credentials"
	case errors.Is(err, relyingparty.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request"
	case errors.Is(err, relyingparty.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorCodeStoreUnavailable, "storage backend unavailable"
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError, "internal server error"
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already written, can only log
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

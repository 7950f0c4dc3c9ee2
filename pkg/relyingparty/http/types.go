// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

// HeaderUsername identifies the account a verification request belongs to.
const HeaderUsername = "X-Username"

// GenerateOptionsRequest is the optional request body for the
// option-generating endpoints. An empty or missing body selects the
// handler's default user.
type GenerateOptionsRequest struct {
	// Username is the account's login name.
	Username string `json:"username,omitempty"`

	// DisplayName is the human-readable name shown by authenticators
	// (optional, defaults to Username).
	DisplayName string `json:"display_name,omitempty"`
}

// VerificationResponse is the response after a successful verification.
type VerificationResponse struct {
	// Verified is always true on a 200 response.
	Verified bool `json:"verified"`

	// CredentialID is the base64url-encoded credential ID
	// (registration only).
	CredentialID string `json:"credential_id,omitempty"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the machine-readable error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeNoPendingChallenge   = "no_pending_challenge"
	ErrorCodeChallengeExpired     = "challenge_expired"
	ErrorCodeChallengeMismatch    = "challenge_mismatch"
	ErrorCodeOriginMismatch       = "origin_mismatch"
	ErrorCodeRelyingPartyMismatch = "relying_party_mismatch"
	ErrorCodeSignatureInvalid     = "signature_invalid"
	ErrorCodeDuplicateCredential  = "duplicate_credential"
	ErrorCodeUnknownCredential    = "unknown_credential"
	ErrorCodePossibleClone        = "possible_clone_detected"
	ErrorCodeNoCredentials        = "no_credentials_registered"
	ErrorCodeStoreUnavailable     = "store_unavailable"
	ErrorCodeInternalError        = "internal_error"
)

// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"errors"
	"fmt"
)

// Sentinel errors for relying-party operations. Every verification failure
// is terminal for the ceremony attempt: the client must request fresh
// options before retrying.
var (
	// ErrNoPendingChallenge is returned when no challenge has been issued for
	// the user and ceremony purpose, or when the issued challenge was already
	// consumed by a prior attempt.
	ErrNoPendingChallenge = errors.New("no pending challenge")

	// ErrChallengeExpired is returned when the pending challenge has outlived
	// its freshness window.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrChallengeMismatch is returned when the challenge embedded in the
	// client response is not byte-identical to the issued one.
	ErrChallengeMismatch = errors.New("challenge mismatch")

	// ErrOriginMismatch is returned when the client response reports an
	// origin that is not in the configured allow list.
	ErrOriginMismatch = errors.New("origin mismatch")

	// ErrRelyingPartyMismatch is returned when the relying-party identifier
	// hash in the authenticator data does not match the configured RP ID.
	ErrRelyingPartyMismatch = errors.New("relying party mismatch")

	// ErrSignatureInvalid is returned when attestation or assertion
	// verification fails in the WebAuthn library layer.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrDuplicateCredential is returned when a credential ID is already
	// registered for the user.
	ErrDuplicateCredential = errors.New("duplicate credential")

	// ErrUnknownCredential is returned when the assertion references a
	// credential that is not registered to the user.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrPossibleClone is returned when the reported signature counter does
	// not advance past the stored one. The credential should be treated as
	// potentially cloned and flagged for revocation.
	ErrPossibleClone = errors.New("possible cloned authenticator detected")

	// ErrNoCredentials is returned when authentication options are requested
	// for a user with no registered credentials.
	ErrNoCredentials = errors.New("no credentials registered")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when creating a user that exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrStoreUnavailable is returned when a persisted store cannot be
	// reached or fails in a way unrelated to the ceremony itself.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRequest is returned when a request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotConfigured is returned when the service is not configured.
	ErrNotConfigured = errors.New("relying party service not configured")
)

// RPError wraps an error with the operation that produced it.
type RPError struct {
	Op  string
	Err error
}

// Error returns the error message.
func (e *RPError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RPError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *RPError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new RPError with the given operation and error.
func NewError(op string, err error) error {
	return &RPError{Op: op, Err: err}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsNoPendingChallenge returns true if the error indicates there was no
// live challenge to consume.
func IsNoPendingChallenge(err error) bool {
	return errors.Is(err, ErrNoPendingChallenge)
}

// IsPossibleClone returns true if the error indicates a counter regression.
func IsPossibleClone(err error) bool {
	return errors.Is(err, ErrPossibleClone)
}

// IsVerificationFailure returns true for any error that terminates a
// ceremony attempt at the verification stage.
func IsVerificationFailure(err error) bool {
	for _, target := range []error{
		ErrNoPendingChallenge,
		ErrChallengeExpired,
		ErrChallengeMismatch,
		ErrOriginMismatch,
		ErrRelyingPartyMismatch,
		ErrSignatureInvalid,
		ErrDuplicateCredential,
		ErrUnknownCredential,
		ErrPossibleClone,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

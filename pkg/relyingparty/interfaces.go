// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
)

// UserStore is the interface applications implement for user persistence.
// Intentionally minimal so applications can bring their own user model.
type UserStore interface {
	// GetByID retrieves a user by their user handle.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, userID []byte) (User, error)

	// GetByName retrieves a user by their login name.
	// Returns ErrUserNotFound if the user does not exist.
	GetByName(ctx context.Context, name string) (User, error)

	// Create creates a new user with the given name and display name.
	// Returns the created user with its assigned handle.
	Create(ctx context.Context, name, displayName string) (User, error)

	// Save persists changes to an existing user.
	Save(ctx context.Context, user User) error

	// Delete removes a user by their handle.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, userID []byte) error
}

// ChallengeStore holds the pending challenge for each (user, purpose) pair.
// At most one challenge is live per pair: Set overwrites any prior value.
// The challenge is carried as go-webauthn session data so the library can
// validate the response against it.
type ChallengeStore interface {
	// Set stores the pending challenge for the user and purpose, replacing
	// any previously issued one.
	Set(ctx context.Context, userID []byte, purpose Purpose, data *webauthn.SessionData) error

	// Get retrieves the pending challenge. Returns ErrNoPendingChallenge if
	// none was issued (or it was already consumed), ErrChallengeExpired if
	// the freshness window has passed.
	Get(ctx context.Context, userID []byte, purpose Purpose) (*webauthn.SessionData, error)

	// Clear removes the pending challenge. Called by the verifiers after
	// one use regardless of the verification outcome.
	Clear(ctx context.Context, userID []byte, purpose Purpose) error
}

// CredentialStore manages registered credential persistence. Credentials
// are scoped to a user; IDs are unique within that scope.
type CredentialStore interface {
	// Add stores a new credential. Returns ErrDuplicateCredential if the
	// credential ID already exists for the user.
	Add(ctx context.Context, cred *Credential) error

	// Get retrieves one of the user's credentials by ID.
	// Returns ErrUnknownCredential if it is not registered to the user.
	Get(ctx context.Context, userID, credentialID []byte) (*Credential, error)

	// GetByUser retrieves all credentials for a user.
	// Returns an empty slice if the user has none.
	GetByUser(ctx context.Context, userID []byte) ([]*Credential, error)

	// UpdateCounter persists a new signature counter value (and bumps the
	// last-used timestamp). Returns ErrUnknownCredential if absent. A
	// persisted implementation must apply this as a compare-and-swap so a
	// stale write cannot roll the counter back.
	UpdateCounter(ctx context.Context, userID, credentialID []byte, newCount uint32) error

	// MarkClone flags a credential whose counter regressed, so callers can
	// surface it for revocation. Returns ErrUnknownCredential if absent.
	MarkClone(ctx context.Context, userID, credentialID []byte) error

	// Delete removes one of the user's credentials.
	// Returns ErrUnknownCredential if it does not exist.
	Delete(ctx context.Context, userID, credentialID []byte) error

	// DeleteByUser removes all credentials for a user.
	DeleteByUser(ctx context.Context, userID []byte) error
}

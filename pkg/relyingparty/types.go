// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"encoding/binary"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Purpose identifies which ceremony a pending challenge belongs to.
// A user holds at most one live challenge per purpose.
type Purpose string

const (
	// PurposeRegistration marks a challenge issued for credential creation.
	PurposeRegistration Purpose = "registration"

	// PurposeAuthentication marks a challenge issued for assertion.
	PurposeAuthentication Purpose = "authentication"
)

// User represents a relying-party user. Applications with their own user
// model implement this interface; UserRecord is the default implementation.
//
// The interface embeds webauthn.User from the go-webauthn library so the
// underlying ceremony operations can consume it directly.
type User interface {
	webauthn.User

	// AddCredential adds a newly registered credential to the user.
	AddCredential(cred *Credential)

	// UpdateCredential replaces the user's copy of an existing credential.
	UpdateCredential(cred *Credential)

	// Name returns the user's login name.
	Name() string

	// DisplayName returns the user's display name.
	DisplayName() string
}

// Credential is one registered authenticator for a user: the public key
// record the relying party stores and verifies assertions against.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator,
	// unique per user.
	ID []byte `json:"id"`

	// UserID is the user handle this credential belongs to.
	UserID []byte `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator capability flags.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data.
	Authenticator AuthenticatorData `json:"authenticator"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter used for clone detection. It only
	// ever increases; an authenticator with no counter reports zero forever.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning marks a credential whose counter regressed at least once.
	CloneWarning bool `json:"clone_warning"`

	// Attachment indicates how the authenticator is attached.
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
			Attachment:   c.Authenticator.Attachment,
		},
	}
}

// FromWebAuthnCredential creates a Credential from the library's type.
func FromWebAuthnCredential(userID []byte, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
			Attachment:   wc.Authenticator.Attachment,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// RegistrationResult reports the outcome of a registration verification.
// Only opaque identifiers are included; no secret material is echoed back.
type RegistrationResult struct {
	// Verified is true when the attestation was accepted and the credential
	// was stored.
	Verified bool `json:"verified"`

	// CredentialID is the identifier of the newly registered credential.
	CredentialID []byte `json:"credential_id,omitempty"`
}

// AuthenticationResult reports the outcome of an assertion verification.
type AuthenticationResult struct {
	// Verified is true when the assertion was accepted and the signature
	// counter was advanced.
	Verified bool `json:"verified"`
}

// UserRecord is the default User implementation, storing the user handle,
// names, and registered credentials.
type UserRecord struct {
	id          []byte
	name        string
	displayName string
	credentials []*Credential
}

// NewUserRecord creates a UserRecord with an explicit user handle.
func NewUserRecord(id []byte, name, displayName string) *UserRecord {
	return &UserRecord{
		id:          id,
		name:        name,
		displayName: displayName,
		credentials: make([]*Credential, 0),
	}
}

// NewUserRecordFromName creates a UserRecord with a handle derived from the
// login name.
func NewUserRecordFromName(name, displayName string) *UserRecord {
	return NewUserRecord(GenerateUserID(name), name, displayName)
}

// GenerateUserID derives a deterministic 8-byte user handle from a login
// name, suitable as a WebAuthn user ID.
func GenerateUserID(name string) []byte {
	// FNV-1a for a stable handle
	var h uint64 = 14695981039346656037
	for _, b := range []byte(name) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, h)
	return id
}

// WebAuthnID returns the user handle.
func (u *UserRecord) WebAuthnID() []byte {
	return u.id
}

// WebAuthnName returns the user's login name.
func (u *UserRecord) WebAuthnName() string {
	return u.name
}

// WebAuthnDisplayName returns the user's display name, falling back to the
// login name.
func (u *UserRecord) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.name
	}
	return u.displayName
}

// WebAuthnIcon returns an empty icon URL, satisfying the webauthn.User
// interface.
func (u *UserRecord) WebAuthnIcon() string {
	return ""
}

// WebAuthnCredentials returns the user's registered credentials in the
// go-webauthn representation.
func (u *UserRecord) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// AddCredential adds a new credential to the user.
func (u *UserRecord) AddCredential(cred *Credential) {
	u.credentials = append(u.credentials, cred)
}

// UpdateCredential replaces an existing credential by ID.
func (u *UserRecord) UpdateCredential(cred *Credential) {
	for i, c := range u.credentials {
		if string(c.ID) == string(cred.ID) {
			u.credentials[i] = cred
			return
		}
	}
}

// Name returns the user's login name.
func (u *UserRecord) Name() string {
	return u.name
}

// DisplayName returns the user's display name.
func (u *UserRecord) DisplayName() string {
	return u.displayName
}

// Credentials returns the user's credentials.
func (u *UserRecord) Credentials() []*Credential {
	return u.credentials
}

// SetCredentials replaces the user's credentials.
func (u *UserRecord) SetCredentials(creds []*Credential) {
	u.credentials = creds
}

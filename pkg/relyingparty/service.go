// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service implements the relying-party side of WebAuthn registration and
// authentication ceremonies. All operations for a given user are
// serialized; operations for different users proceed concurrently.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	challenges ChallengeStore
	creds      CredentialStore
	locks      *userLocks
	configured bool
}

// ServiceParams contains dependencies for creating a relying-party service.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// ChallengeStore holds pending ceremony challenges (required).
	ChallengeStore ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore
}

// NewService creates a new relying-party service with the provided
// dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		challenges: params.ChallengeStore,
		creds:      params.CredentialStore,
		locks:      newUserLocks(),
		configured: true,
	}, nil
}

// BeginRegistration starts a registration ceremony for the named user,
// creating the user if they do not exist. Any prior pending registration
// challenge for the user is replaced.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	unlock := s.locks.lock(username)
	defer unlock()

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		if !IsUserNotFound(err) {
			return nil, WrapError("get user by name", err)
		}
		user, err = s.users.Create(ctx, username, displayName)
		if err != nil {
			return nil, WrapError("create user", err)
		}
	}

	existingCreds, err := s.creds.GetByUser(ctx, user.WebAuthnID())
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	excludeList := make([]protocol.CredentialDescriptor, len(existingCreds))
	for i, cred := range existingCreds {
		excludeList[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transport,
		}
	}

	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Set(ctx, user.WebAuthnID(), PurposeRegistration, session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishRegistration completes a registration ceremony. The pending
// challenge is consumed whether or not verification succeeds.
func (s *Service) FinishRegistration(ctx context.Context, username string, response *protocol.ParsedCredentialCreationData) (*RegistrationResult, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if response == nil {
		return nil, ErrInvalidRequest
	}

	unlock := s.locks.lock(username)
	defer unlock()

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, ErrNoPendingChallenge
		}
		return nil, WrapError("get user by name", err)
	}

	session, err := s.takeChallenge(ctx, user.WebAuthnID(), PurposeRegistration)
	if err != nil {
		return nil, err
	}

	if err := s.checkClientData(session, response.Response.CollectedClientData); err != nil {
		return nil, err
	}
	if err := s.checkRPIDHash(response.Response.AttestationObject.AuthData.RPIDHash); err != nil {
		return nil, err
	}

	credential, err := s.webauthn.CreateCredential(user, *session, response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	cred := FromWebAuthnCredential(user.WebAuthnID(), credential)
	if err := s.creds.Add(ctx, cred); err != nil {
		return nil, WrapError("add credential", err)
	}

	user.AddCredential(cred)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, WrapError("save user", err)
	}

	return &RegistrationResult{
		Verified:     true,
		CredentialID: cred.ID,
	}, nil
}

// BeginAuthentication starts an authentication ceremony for the named
// user. The user must exist and have at least one registered credential.
// Any prior pending authentication challenge for the user is replaced.
func (s *Service) BeginAuthentication(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	unlock := s.locks.lock(username)
	defer unlock()

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, ErrNoCredentials
		}
		return nil, WrapError("get user by name", err)
	}

	creds, err := s.creds.GetByUser(ctx, user.WebAuthnID())
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	options, session, err := s.webauthn.BeginLogin(user)
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	if err := s.challenges.Set(ctx, user.WebAuthnID(), PurposeAuthentication, session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishAuthentication completes an authentication ceremony. The pending
// challenge is consumed whether or not verification succeeds. A signature
// counter that fails to advance marks the credential and rejects the
// assertion.
func (s *Service) FinishAuthentication(ctx context.Context, username string, response *protocol.ParsedCredentialAssertionData) (*AuthenticationResult, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if response == nil {
		return nil, ErrInvalidRequest
	}

	unlock := s.locks.lock(username)
	defer unlock()

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, ErrNoPendingChallenge
		}
		return nil, WrapError("get user by name", err)
	}

	session, err := s.takeChallenge(ctx, user.WebAuthnID(), PurposeAuthentication)
	if err != nil {
		return nil, err
	}

	if err := s.checkClientData(session, response.Response.CollectedClientData); err != nil {
		return nil, err
	}
	if err := s.checkRPIDHash(response.Response.AuthenticatorData.RPIDHash); err != nil {
		return nil, err
	}

	stored, err := s.creds.Get(ctx, user.WebAuthnID(), response.RawID)
	if err != nil {
		return nil, WrapError("get credential", err)
	}

	validated, err := s.webauthn.ValidateLogin(user, *session, response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	reported := response.Response.AuthenticatorData.Counter
	previous := stored.Authenticator.SignCount

	if validated.Authenticator.CloneWarning || counterRegressed(reported, previous) {
		if markErr := s.creds.MarkClone(ctx, user.WebAuthnID(), stored.ID); markErr != nil {
			return nil, WrapError("mark clone", markErr)
		}
		return nil, ErrPossibleClone
	}

	if reported > previous {
		if err := s.creds.UpdateCounter(ctx, user.WebAuthnID(), stored.ID, reported); err != nil {
			return nil, WrapError("update counter", err)
		}
	}

	// stored is a snapshot; the store's own counter was advanced by
	// UpdateCounter above. Refresh the snapshot for the user record.
	stored.Authenticator.SignCount = reported
	stored.LastUsedAt = time.Now().UTC()
	user.UpdateCredential(stored)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, WrapError("save user", err)
	}

	return &AuthenticationResult{Verified: true}, nil
}

// GetUser retrieves a user by their login name.
func (s *Service) GetUser(ctx context.Context, username string) (User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.users.GetByName(ctx, username)
}

// GetCredentials retrieves all credentials registered for a user.
func (s *Service) GetCredentials(ctx context.Context, userID []byte) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.creds.GetByUser(ctx, userID)
}

// DeleteUser removes a user along with their credentials and any pending
// challenges.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if !s.configured {
		return ErrNotConfigured
	}

	unlock := s.locks.lock(username)
	defer unlock()

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		return WrapError("get user by name", err)
	}

	uid := user.WebAuthnID()
	if err := s.creds.DeleteByUser(ctx, uid); err != nil {
		return WrapError("delete user credentials", err)
	}
	if err := s.challenges.Clear(ctx, uid, PurposeRegistration); err != nil {
		return WrapError("clear registration challenge", err)
	}
	if err := s.challenges.Clear(ctx, uid, PurposeAuthentication); err != nil {
		return WrapError("clear authentication challenge", err)
	}
	return s.users.Delete(ctx, uid)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// takeChallenge consumes the pending challenge for the pair. The entry is
// removed even when it has already expired, so a retry cannot see it.
func (s *Service) takeChallenge(ctx context.Context, userID []byte, purpose Purpose) (*webauthn.SessionData, error) {
	session, err := s.challenges.Get(ctx, userID, purpose)
	if err != nil {
		if IsNoPendingChallenge(err) {
			return nil, ErrNoPendingChallenge
		}
		if clearErr := s.challenges.Clear(ctx, userID, purpose); clearErr != nil {
			return nil, WrapError("clear challenge", clearErr)
		}
		return nil, err
	}

	if err := s.challenges.Clear(ctx, userID, purpose); err != nil {
		return nil, WrapError("clear challenge", err)
	}

	if !session.Expires.IsZero() && session.Expires.Before(time.Now()) {
		return nil, ErrChallengeExpired
	}
	return session, nil
}

// checkClientData verifies the response's client data against the issued
// challenge and the configured origins.
func (s *Service) checkClientData(session *webauthn.SessionData, clientData protocol.CollectedClientData) error {
	if clientData.Challenge != session.Challenge {
		return ErrChallengeMismatch
	}

	for _, origin := range s.config.RPOrigins {
		if clientData.Origin == origin {
			return nil
		}
	}
	return ErrOriginMismatch
}

// checkRPIDHash verifies the authenticator data was produced for this
// relying party.
func (s *Service) checkRPIDHash(rpIDHash []byte) error {
	expected := sha256.Sum256([]byte(s.config.RPID))
	if !bytes.Equal(rpIDHash, expected[:]) {
		return ErrRelyingPartyMismatch
	}
	return nil
}

// counterRegressed reports whether the reported signature counter failed
// to advance past the stored one. Authenticators that never increment,
// reporting zero against a stored zero, are exempt.
func counterRegressed(reported, stored uint32) bool {
	if reported == 0 && stored == 0 {
		return false
	}
	return reported <= stored
}

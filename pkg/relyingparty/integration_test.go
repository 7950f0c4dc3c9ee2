// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_RegistrationCeremony runs a complete registration
// ceremony against a virtual authenticator.
func TestIntegration_RegistrationCeremony(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cfg := svc.Config()

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, "integration@example.com", "Integration User")
	require.NoError(t, err)

	assert.Equal(t, cfg.RPID, options.Response.RelyingParty.ID)
	assert.Equal(t, "integration@example.com", options.Response.User.Name)
	assert.Equal(t, "Integration User", options.Response.User.DisplayName)
	assert.NotEmpty(t, options.Response.Challenge)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	result, err := svc.FinishRegistration(ctx, "integration@example.com", parsedResponse)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.CredentialID)

	user, err := svc.GetUser(ctx, "integration@example.com")
	require.NoError(t, err)
	creds, err := svc.GetCredentials(ctx, user.WebAuthnID())
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

// TestIntegration_AuthenticationCeremony registers a credential and then
// authenticates with it, verifying the stored counter advances.
func TestIntegration_AuthenticationCeremony(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cfg := svc.Config()

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	registerVirtual(t, svc, rp, &authenticator, &credential, "login@example.com")

	user, err := svc.GetUser(ctx, "login@example.com")
	require.NoError(t, err)

	logins := 3
	for i := 0; i < logins; i++ {
		credential.Counter++

		options, err := svc.BeginAuthentication(ctx, "login@example.com")
		require.NoError(t, err)
		assert.Equal(t, cfg.RPID, options.Response.RelyingPartyID)

		optionsJSON, err := json.Marshal(options.Response)
		require.NoError(t, err)
		parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
		require.NoError(t, err)

		assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
		parsedResponse, err := parseAssertionResponse(assertion)
		require.NoError(t, err)

		result, err := svc.FinishAuthentication(ctx, "login@example.com", parsedResponse)
		require.NoError(t, err)
		assert.True(t, result.Verified)
	}

	creds, err := svc.GetCredentials(ctx, user.WebAuthnID())
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, uint32(logins), creds[0].Authenticator.SignCount)
}

// TestIntegration_CloneDetection replays a stale signature counter, as a
// cloned authenticator would, and expects the assertion to be rejected
// with the credential flagged.
func TestIntegration_CloneDetection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cfg := svc.Config()

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	registerVirtual(t, svc, rp, &authenticator, &credential, "cloned@example.com")

	// Legitimate authentication brings the stored counter to 1
	credential.Counter = 1
	authenticateVirtual(t, svc, rp, authenticator, credential, "cloned@example.com", true)

	// The clone signs with the same counter value
	credential.Counter = 1
	options, err := svc.BeginAuthentication(ctx, "cloned@example.com")
	require.NoError(t, err)
	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)
	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, "cloned@example.com", parsedResponse)
	assert.ErrorIs(t, err, ErrPossibleClone)

	user, err := svc.GetUser(ctx, "cloned@example.com")
	require.NoError(t, err)
	creds, err := svc.GetCredentials(ctx, user.WebAuthnID())
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.True(t, creds[0].Authenticator.CloneWarning)
}

// TestIntegration_MultipleCredentials registers two authenticators for
// one user and authenticates with each.
func TestIntegration_MultipleCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cfg := svc.Config()

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}

	auth1 := virtualwebauthn.NewAuthenticator()
	cred1 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	auth2 := virtualwebauthn.NewAuthenticator()
	cred2 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	registerVirtual(t, svc, rp, &auth1, &cred1, "multi@example.com")
	registerVirtual(t, svc, rp, &auth2, &cred2, "multi@example.com")

	user, err := svc.GetUser(ctx, "multi@example.com")
	require.NoError(t, err)
	creds, err := svc.GetCredentials(ctx, user.WebAuthnID())
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	options, err := svc.BeginAuthentication(ctx, "multi@example.com")
	require.NoError(t, err)
	assert.Len(t, options.Response.AllowedCredentials, 2)

	cred1.Counter++
	authenticateVirtual(t, svc, rp, auth1, cred1, "multi@example.com", true)
	cred2.Counter++
	authenticateVirtual(t, svc, rp, auth2, cred2, "multi@example.com", true)
}

// registerVirtual runs a registration ceremony with a virtual
// authenticator and attaches the credential to it.
func registerVirtual(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty, authenticator *virtualwebauthn.Authenticator, credential *virtualwebauthn.Credential, username string) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, username, "Virtual User")
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, *authenticator, *credential, *parsedOptions)
	parsedResponse, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	result, err := svc.FinishRegistration(ctx, username, parsedResponse)
	require.NoError(t, err)
	require.True(t, result.Verified)

	authenticator.AddCredential(*credential)
}

// authenticateVirtual runs an authentication ceremony with a virtual
// authenticator.
func authenticateVirtual(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty, authenticator virtualwebauthn.Authenticator, credential virtualwebauthn.Credential, username string, wantOK bool) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginAuthentication(ctx, username)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	result, err := svc.FinishAuthentication(ctx, username, parsedResponse)
	if wantOK {
		require.NoError(t, err)
		require.True(t, result.Verified)
	} else {
		require.Error(t, err)
	}
}

// parseAttestationResponse parses a virtual authenticator attestation
// response into the format expected by go-webauthn.
func parseAttestationResponse(attestation string) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a virtual authenticator assertion
// response into the format expected by go-webauthn.
func parseAssertionResponse(assertion string) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, err
	}
	return car.Parse()
}

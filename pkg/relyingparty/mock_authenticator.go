// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// MockAuthenticator simulates a FIDO2 authenticator for testing. It
// produces attestation and assertion responses that pass verification,
// with a controllable signature counter for exercising clone detection.
type MockAuthenticator struct {
	// AAGUID is the authenticator model identifier (16 bytes).
	AAGUID []byte

	// CredentialID identifies the credential this authenticator holds.
	CredentialID []byte

	// SignCount is the signature counter reported in assertions.
	SignCount uint32

	// UserPresent controls the UP flag.
	UserPresent bool

	// UserVerified controls the UV flag.
	UserVerified bool

	privateKey *ecdsa.PrivateKey
	rpID       string
	rpIDHash   []byte
}

// MockAuthenticatorOption configures a MockAuthenticator.
type MockAuthenticatorOption func(*MockAuthenticator)

// WithAAGUID sets a custom AAGUID.
func WithAAGUID(aaguid []byte) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.AAGUID = aaguid
	}
}

// WithCredentialID sets a custom credential ID.
func WithCredentialID(credID []byte) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.CredentialID = credID
	}
}

// WithSignCount sets the initial signature counter.
func WithSignCount(count uint32) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.SignCount = count
	}
}

// WithUserVerified controls the UV flag.
func WithUserVerified(uv bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserVerified = uv
	}
}

// NewMockAuthenticator creates a mock authenticator bound to the given
// relying-party ID, with a fresh P-256 key, random AAGUID and credential
// ID, and a counter starting at zero.
func NewMockAuthenticator(rpID string, opts ...MockAuthenticatorOption) (*MockAuthenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	m := &MockAuthenticator{
		AAGUID:       aaguid,
		CredentialID: credID,
		SignCount:    0,
		UserPresent:  true,
		UserVerified: true,
		privateKey:   privateKey,
		rpID:         rpID,
		rpIDHash:     rpIDHash[:],
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// PublicKey returns the authenticator's public key.
func (m *MockAuthenticator) PublicKey() crypto.PublicKey {
	return m.privateKey.Public()
}

// PublicKeyBytes returns the public key as a COSE EC2 key for ES256.
func (m *MockAuthenticator) PublicKeyBytes() ([]byte, error) {
	pubKey := m.privateKey.Public().(*ecdsa.PublicKey)

	coseKey := map[int]interface{}{
		1:  2,                          // kty: EC2
		3:  int(webauthncose.AlgES256), // alg
		-1: 1,                          // crv: P-256
		-2: pubKey.X.Bytes(),
		-3: pubKey.Y.Bytes(),
	}

	return webauthncbor.Marshal(coseKey)
}

// SetSignCount forces the signature counter to a specific value.
func (m *MockAuthenticator) SetSignCount(count uint32) {
	m.SignCount = count
}

// CreateRegistrationResponse produces a parsed attestation response for
// the given challenge, as a browser would hand to the relying party
// after navigator.credentials.create. Uses "none" attestation.
func (m *MockAuthenticator) CreateRegistrationResponse(
	challenge []byte,
	userID []byte,
	origin string,
) (*protocol.ParsedCredentialCreationData, error) {
	authData, err := m.buildAuthenticatorData(true)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.buildClientDataJSON(challenge, origin, "webauthn.create")

	attestationObject := map[string]interface{}{
		"authData": authData,
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
	}
	attestationObjectBytes, err := webauthncbor.Marshal(attestationObject)
	if err != nil {
		return nil, err
	}

	pubKeyBytes, err := m.PublicKeyBytes()
	if err != nil {
		return nil, err
	}

	parsedAttObj := protocol.AttestationObject{
		Format:       "none",
		AttStatement: map[string]interface{}{},
		AuthData: protocol.AuthenticatorData{
			RPIDHash: m.rpIDHash,
			Flags:    m.buildFlags(true),
			Counter:  m.SignCount,
			AttData: protocol.AttestedCredentialData{
				AAGUID:              m.AAGUID,
				CredentialID:        m.CredentialID,
				CredentialPublicKey: pubKeyBytes,
			},
		},
	}

	credentialIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialCreationData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credentialIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.create",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AttestationObject: parsedAttObj,
			Transports:        []protocol.AuthenticatorTransport{protocol.USB},
		},
		Raw: protocol.CredentialCreationResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credentialIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AttestationResponse: protocol.AuthenticatorAttestationResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AttestationObject: attestationObjectBytes,
				Transports:        []string{"usb"},
			},
		},
	}, nil
}

// CreateAuthenticationResponse produces a parsed assertion response for
// the given challenge, incrementing the signature counter first. Call
// SetSignCount beforehand to simulate a stuck or regressed counter.
func (m *MockAuthenticator) CreateAuthenticationResponse(
	challenge []byte,
	userHandle []byte,
	origin string,
) (*protocol.ParsedCredentialAssertionData, error) {
	m.SignCount++

	authData, err := m.buildAuthenticatorData(false)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.buildClientDataJSON(challenge, origin, "webauthn.get")
	clientDataHash := sha256.Sum256(clientDataJSON)

	// Signature covers authData || SHA-256(clientDataJSON)
	signedData := append(authData, clientDataHash[:]...)
	signature, err := m.sign(signedData)
	if err != nil {
		return nil, err
	}

	parsedAuthData := protocol.AuthenticatorData{
		RPIDHash: m.rpIDHash,
		Flags:    m.buildFlags(false),
		Counter:  m.SignCount,
	}

	credentialIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialAssertionData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credentialIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAssertionResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.get",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AuthenticatorData: parsedAuthData,
			Signature:         signature,
			UserHandle:        userHandle,
		},
		Raw: protocol.CredentialAssertionResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credentialIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AssertionResponse: protocol.AuthenticatorAssertionResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AuthenticatorData: authData,
				Signature:         signature,
				UserHandle:        userHandle,
			},
		},
	}, nil
}

func (m *MockAuthenticator) buildFlags(includeCredential bool) protocol.AuthenticatorFlags {
	var flags byte
	if m.UserPresent {
		flags |= 0x01 // UP
	}
	if m.UserVerified {
		flags |= 0x04 // UV
	}
	if includeCredential {
		flags |= 0x40 // AT
	}
	return protocol.AuthenticatorFlags(flags)
}

// buildAuthenticatorData serializes the authenticator data structure.
// Attested credential data is included only during registration.
func (m *MockAuthenticator) buildAuthenticatorData(includeCredential bool) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(m.rpIDHash)
	buf.WriteByte(byte(m.buildFlags(includeCredential)))

	signCountBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(signCountBytes, m.SignCount)
	buf.Write(signCountBytes)

	if includeCredential {
		buf.Write(m.AAGUID)

		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(m.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(m.CredentialID)

		pubKeyBytes, err := m.PublicKeyBytes()
		if err != nil {
			return nil, err
		}
		buf.Write(pubKeyBytes)
	}

	return buf.Bytes(), nil
}

func (m *MockAuthenticator) buildClientDataJSON(challenge []byte, origin, ceremonyType string) []byte {
	clientData := struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	}

	jsonBytes, _ := json.Marshal(clientData)
	return jsonBytes
}

func (m *MockAuthenticator) sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, m.privateKey, hash[:])
	if err != nil {
		return nil, err
	}
	return marshalECDSASignature(r, s)
}

// marshalECDSASignature encodes r and s as an ASN.1 DER ECDSA signature.
func marshalECDSASignature(r, s *big.Int) ([]byte, error) {
	rBytes := r.Bytes()
	sBytes := s.Bytes()

	if len(rBytes) > 0 && rBytes[0] >= 0x80 {
		rBytes = append([]byte{0x00}, rBytes...)
	}
	if len(sBytes) > 0 && sBytes[0] >= 0x80 {
		sBytes = append([]byte{0x00}, sBytes...)
	}

	rLen := len(rBytes)
	sLen := len(sBytes)
	seqLen := 2 + rLen + 2 + sLen

	sig := make([]byte, 0, 2+seqLen)
	sig = append(sig, 0x30, byte(seqLen))
	sig = append(sig, 0x02, byte(rLen))
	sig = append(sig, rBytes...)
	sig = append(sig, 0x02, byte(sLen))
	sig = append(sig, sBytes...)

	return sig, nil
}

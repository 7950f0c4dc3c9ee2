// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package relyingparty implements the server side of WebAuthn (FIDO2)
// registration and authentication ceremonies.
//
// This package wraps the go-webauthn/webauthn library and provides:
//   - Pluggable storage interfaces for users, credentials, and pending
//     challenges
//   - In-memory storage implementations for development/testing
//   - PostgreSQL storage implementations (pkg/relyingparty/pgstore)
//   - Composable HTTP handlers that can be mounted on any router
//     (pkg/relyingparty/http)
//
// # Challenge lifecycle
//
// Each user has at most one pending challenge per ceremony purpose
// (registration or authentication). Beginning a ceremony replaces any
// prior pending challenge for that purpose. Finishing a ceremony
// consumes the challenge whether verification succeeds or fails, so a
// captured response can never be replayed.
//
// # Clone detection
//
// Assertions must advance the credential's signature counter.
// A counter that fails to advance marks the credential and rejects the
// assertion, except for authenticators that never increment and always
// report zero.
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := relyingparty.NewService(relyingparty.ServiceParams{
//	    Config: &relyingparty.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigins:     []string{"https://localhost:3000"},
//	    },
//	    UserStore:       relyingparty.NewMemoryUserStore(),
//	    ChallengeStore:  relyingparty.NewMemoryChallengeStore(),
//	    CredentialStore: relyingparty.NewMemoryCredentialStore(),
//	})
//
// For production, use pgstore or implement the storage interfaces with
// your database.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package relyingparty

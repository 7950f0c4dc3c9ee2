// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package relyingparty

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// MemoryUserStore is an in-memory implementation of UserStore.
// Intended for development and testing.
type MemoryUserStore struct {
	mu       sync.RWMutex
	byID     map[string]*UserRecord
	byName   map[string]*UserRecord
	idToName map[string]string
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:     make(map[string]*UserRecord),
		byName:   make(map[string]*UserRecord),
		idToName: make(map[string]string),
	}
}

// GetByID retrieves a user by their handle.
func (s *MemoryUserStore) GetByID(ctx context.Context, userID []byte) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[hex.EncodeToString(userID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByName retrieves a user by their login name.
func (s *MemoryUserStore) GetByName(ctx context.Context, name string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byName[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Create creates a new user with the given name and display name.
func (s *MemoryUserStore) Create(ctx context.Context, name, displayName string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return nil, ErrUserAlreadyExists
	}

	user := NewUserRecordFromName(name, displayName)
	key := hex.EncodeToString(user.WebAuthnID())

	s.byID[key] = user
	s.byName[name] = user
	s.idToName[key] = name

	return user, nil
}

// Save persists changes to an existing user.
func (s *MemoryUserStore) Save(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := user.(*UserRecord)
	if !ok {
		return ErrInvalidRequest
	}

	key := hex.EncodeToString(user.WebAuthnID())
	s.byID[key] = record
	s.byName[record.Name()] = record
	s.idToName[key] = record.Name()

	return nil
}

// Delete removes a user by their handle.
func (s *MemoryUserStore) Delete(ctx context.Context, userID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(userID)
	name, ok := s.idToName[key]
	if !ok {
		return ErrUserNotFound
	}

	delete(s.byID, key)
	delete(s.byName, name)
	delete(s.idToName, key)

	return nil
}

// Count returns the number of users in the store.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore
// with a freshness window per challenge.
type MemoryChallengeStore struct {
	mu      sync.RWMutex
	pending map[string]*challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	data     *webauthn.SessionData
	issuedAt time.Time
}

// NewMemoryChallengeStore creates a challenge store with the default
// 2-minute freshness window.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return NewMemoryChallengeStoreWithTTL(2 * time.Minute)
}

// NewMemoryChallengeStoreWithTTL creates a challenge store with a custom
// freshness window.
func NewMemoryChallengeStoreWithTTL(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		pending: make(map[string]*challengeEntry),
		ttl:     ttl,
	}
}

func challengeKey(userID []byte, purpose Purpose) string {
	return hex.EncodeToString(userID) + "/" + string(purpose)
}

// Set stores the pending challenge, replacing any prior one for the pair.
func (s *MemoryChallengeStore) Set(ctx context.Context, userID []byte, purpose Purpose, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[challengeKey(userID, purpose)] = &challengeEntry{
		data:     data,
		issuedAt: time.Now(),
	}
	return nil
}

// Get retrieves the pending challenge for the pair.
func (s *MemoryChallengeStore) Get(ctx context.Context, userID []byte, purpose Purpose) (*webauthn.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.pending[challengeKey(userID, purpose)]
	if !ok {
		return nil, ErrNoPendingChallenge
	}
	if time.Since(entry.issuedAt) > s.ttl {
		return nil, ErrChallengeExpired
	}
	return entry.data, nil
}

// Clear removes the pending challenge for the pair.
func (s *MemoryChallengeStore) Clear(ctx context.Context, userID []byte, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, challengeKey(userID, purpose))
	return nil
}

// Count returns the number of live entries, expired ones included.
func (s *MemoryChallengeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Cleanup removes expired entries and returns how many were removed.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.pending {
		if now.Sub(entry.issuedAt) > s.ttl {
			delete(s.pending, key)
			removed++
		}
	}
	return removed
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// Credentials are kept per user; IDs are unique within a user.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byUser: make(map[string]map[string]*Credential),
	}
}

// Add stores a new credential.
func (s *MemoryCredentialStore) Add(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userKey := hex.EncodeToString(cred.UserID)
	credKey := hex.EncodeToString(cred.ID)

	creds, ok := s.byUser[userKey]
	if !ok {
		creds = make(map[string]*Credential)
		s.byUser[userKey] = creds
	}
	if _, exists := creds[credKey]; exists {
		return ErrDuplicateCredential
	}
	stored := *cred
	creds[credKey] = &stored
	return nil
}

// Get retrieves one of the user's credentials by ID. The returned
// credential is a copy; store state changes only through the store's
// own write methods.
func (s *MemoryCredentialStore) Get(ctx context.Context, userID, credentialID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byUser[hex.EncodeToString(userID)][hex.EncodeToString(credentialID)]
	if !ok {
		return nil, ErrUnknownCredential
	}
	c := *cred
	return &c, nil
}

// GetByUser retrieves all credentials for a user, as copies.
func (s *MemoryCredentialStore) GetByUser(ctx context.Context, userID []byte) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := s.byUser[hex.EncodeToString(userID)]
	result := make([]*Credential, 0, len(creds))
	for _, c := range creds {
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

// UpdateCounter persists a new signature counter value.
func (s *MemoryCredentialStore) UpdateCounter(ctx context.Context, userID, credentialID []byte, newCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byUser[hex.EncodeToString(userID)][hex.EncodeToString(credentialID)]
	if !ok {
		return ErrUnknownCredential
	}
	cred.Authenticator.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

// MarkClone flags a credential whose counter regressed.
func (s *MemoryCredentialStore) MarkClone(ctx context.Context, userID, credentialID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byUser[hex.EncodeToString(userID)][hex.EncodeToString(credentialID)]
	if !ok {
		return ErrUnknownCredential
	}
	cred.Authenticator.CloneWarning = true
	return nil
}

// Delete removes one of the user's credentials.
func (s *MemoryCredentialStore) Delete(ctx context.Context, userID, credentialID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userKey := hex.EncodeToString(userID)
	credKey := hex.EncodeToString(credentialID)
	if _, ok := s.byUser[userKey][credKey]; !ok {
		return ErrUnknownCredential
	}
	delete(s.byUser[userKey], credKey)
	return nil
}

// DeleteByUser removes all credentials for a user.
func (s *MemoryCredentialStore) DeleteByUser(ctx context.Context, userID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byUser, hex.EncodeToString(userID))
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, creds := range s.byUser {
		n += len(creds)
	}
	return n
}

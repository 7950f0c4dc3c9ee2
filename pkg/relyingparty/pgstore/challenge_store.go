// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jackc/pgx/v4"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// ChallengeStore persists pending ceremony challenges in PostgreSQL,
// one row per (user, purpose) pair.
type ChallengeStore struct {
	db  DB
	ttl time.Duration
}

// NewChallengeStore creates a challenge store with the given freshness
// window.
func NewChallengeStore(db DB, ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{db: db, ttl: ttl}
}

// Set stores the pending challenge, replacing any prior one for the pair.
func (s *ChallengeStore) Set(ctx context.Context, userID []byte, purpose relyingparty.Purpose, data *webauthn.SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return storeErr("marshal session", err)
	}

	q := `
        INSERT INTO webauthn_pending_challenges (user_id, purpose, session_data, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, purpose) DO UPDATE
        SET session_data = EXCLUDED.session_data, expires_at = EXCLUDED.expires_at
    `
	if _, err := s.db.Exec(ctx, q, userID, string(purpose), payload, time.Now().Add(s.ttl)); err != nil {
		return storeErr("set challenge", err)
	}
	return nil
}

// Get retrieves the pending challenge for the pair.
func (s *ChallengeStore) Get(ctx context.Context, userID []byte, purpose relyingparty.Purpose) (*webauthn.SessionData, error) {
	q := `
        SELECT session_data, expires_at
        FROM webauthn_pending_challenges
        WHERE user_id = $1 AND purpose = $2
    `
	var payload []byte
	var expiresAt time.Time
	err := s.db.QueryRow(ctx, q, userID, string(purpose)).Scan(&payload, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, relyingparty.ErrNoPendingChallenge
	}
	if err != nil {
		return nil, storeErr("get challenge", err)
	}

	if time.Now().After(expiresAt) {
		return nil, relyingparty.ErrChallengeExpired
	}

	var data webauthn.SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, storeErr("unmarshal session", err)
	}
	return &data, nil
}

// Clear removes the pending challenge for the pair.
func (s *ChallengeStore) Clear(ctx context.Context, userID []byte, purpose relyingparty.Purpose) error {
	q := `DELETE FROM webauthn_pending_challenges WHERE user_id = $1 AND purpose = $2`
	if _, err := s.db.Exec(ctx, q, userID, string(purpose)); err != nil {
		return storeErr("clear challenge", err)
	}
	return nil
}

// CleanupExpired removes challenges past their freshness window and
// returns how many were removed.
func (s *ChallengeStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM webauthn_pending_challenges WHERE expires_at < NOW()`)
	if err != nil {
		return 0, storeErr("cleanup challenges", err)
	}
	return tag.RowsAffected(), nil
}

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

	"github.com/jackc/pgx/v4"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// CredentialStore persists registered credentials in PostgreSQL. The
// signature counter and clone flag live in their own columns so counter
// updates are conditional at the database level, not read-modify-write.
type CredentialStore struct {
	db DB
}

// NewCredentialStore creates a PostgreSQL credential store.
func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Add stores a new credential.
func (s *CredentialStore) Add(ctx context.Context, cred *relyingparty.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return storeErr("marshal credential", err)
	}

	q := `
        INSERT INTO webauthn_credentials (user_id, credential_id, payload, sign_count, clone_warning, created_at, last_used_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
    `
	_, err = s.db.Exec(ctx, q, cred.UserID, cred.ID, payload, int64(cred.Authenticator.SignCount), cred.Authenticator.CloneWarning)
	if err != nil {
		if isUniqueViolation(err) {
			return relyingparty.ErrDuplicateCredential
		}
		return storeErr("add credential", err)
	}
	return nil
}

// Get retrieves one of the user's credentials by ID.
func (s *CredentialStore) Get(ctx context.Context, userID, credentialID []byte) (*relyingparty.Credential, error) {
	q := `
        SELECT payload, sign_count, clone_warning, created_at, last_used_at
        FROM webauthn_credentials
        WHERE user_id = $1 AND credential_id = $2
    `
	cred, err := scanCredential(s.db.QueryRow(ctx, q, userID, credentialID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, relyingparty.ErrUnknownCredential
	}
	if err != nil {
		return nil, storeErr("get credential", err)
	}
	return cred, nil
}

// GetByUser retrieves all credentials for a user.
func (s *CredentialStore) GetByUser(ctx context.Context, userID []byte) ([]*relyingparty.Credential, error) {
	q := `
        SELECT payload, sign_count, clone_warning, created_at, last_used_at
        FROM webauthn_credentials
        WHERE user_id = $1
        ORDER BY created_at
    `
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("get credentials", err)
	}
	defer rows.Close()

	creds := make([]*relyingparty.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, storeErr("scan credential", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate credentials", err)
	}
	return creds, nil
}

// UpdateCounter persists a new signature counter value. The update only
// applies when the new value is strictly greater than the stored one, so
// racing writers cannot move the counter backwards. A lost race against
// a higher counter reports ErrPossibleClone.
func (s *CredentialStore) UpdateCounter(ctx context.Context, userID, credentialID []byte, newCount uint32) error {
	q := `
        UPDATE webauthn_credentials
        SET sign_count = $3, last_used_at = NOW()
        WHERE user_id = $1 AND credential_id = $2 AND sign_count < $3
    `
	tag, err := s.db.Exec(ctx, q, userID, credentialID, int64(newCount))
	if err != nil {
		return storeErr("update counter", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, userID, credentialID); getErr != nil {
			return getErr
		}
		return relyingparty.ErrPossibleClone
	}
	return nil
}

// MarkClone flags a credential whose counter regressed.
func (s *CredentialStore) MarkClone(ctx context.Context, userID, credentialID []byte) error {
	q := `
        UPDATE webauthn_credentials
        SET clone_warning = TRUE
        WHERE user_id = $1 AND credential_id = $2
    `
	tag, err := s.db.Exec(ctx, q, userID, credentialID)
	if err != nil {
		return storeErr("mark clone", err)
	}
	if tag.RowsAffected() == 0 {
		return relyingparty.ErrUnknownCredential
	}
	return nil
}

// Delete removes one of the user's credentials.
func (s *CredentialStore) Delete(ctx context.Context, userID, credentialID []byte) error {
	q := `DELETE FROM webauthn_credentials WHERE user_id = $1 AND credential_id = $2`
	tag, err := s.db.Exec(ctx, q, userID, credentialID)
	if err != nil {
		return storeErr("delete credential", err)
	}
	if tag.RowsAffected() == 0 {
		return relyingparty.ErrUnknownCredential
	}
	return nil
}

// DeleteByUser removes all credentials for a user.
func (s *CredentialStore) DeleteByUser(ctx context.Context, userID []byte) error {
	q := `DELETE FROM webauthn_credentials WHERE user_id = $1`
	if _, err := s.db.Exec(ctx, q, userID); err != nil {
		return storeErr("delete credentials", err)
	}
	return nil
}

// scanCredential reads a credential row. The column values for the
// counter and clone flag override whatever the payload snapshot holds.
func scanCredential(row pgx.Row) (*relyingparty.Credential, error) {
	var payload []byte
	var signCount int64
	var cloneWarning bool
	var createdAt, lastUsedAt time.Time

	if err := row.Scan(&payload, &signCount, &cloneWarning, &createdAt, &lastUsedAt); err != nil {
		return nil, err
	}

	var cred relyingparty.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, err
	}
	cred.Authenticator.SignCount = uint32(signCount)
	cred.Authenticator.CloneWarning = cloneWarning
	cred.CreatedAt = createdAt
	cred.LastUsedAt = lastUsedAt
	return &cred, nil
}

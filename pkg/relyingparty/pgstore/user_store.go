// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// UserStore persists users in PostgreSQL. Loaded users are hydrated
// with their credentials from the credential store.
type UserStore struct {
	db    DB
	creds *CredentialStore
}

// NewUserStore creates a PostgreSQL user store.
func NewUserStore(db DB) *UserStore {
	return &UserStore{
		db:    db,
		creds: NewCredentialStore(db),
	}
}

// GetByID retrieves a user by their handle.
func (s *UserStore) GetByID(ctx context.Context, userID []byte) (relyingparty.User, error) {
	q := `SELECT id, name, display_name FROM webauthn_users WHERE id = $1`
	return s.scanUser(ctx, s.db.QueryRow(ctx, q, userID))
}

// GetByName retrieves a user by their login name.
func (s *UserStore) GetByName(ctx context.Context, name string) (relyingparty.User, error) {
	q := `SELECT id, name, display_name FROM webauthn_users WHERE name = $1`
	return s.scanUser(ctx, s.db.QueryRow(ctx, q, name))
}

// Create creates a new user with the given name and display name.
func (s *UserStore) Create(ctx context.Context, name, displayName string) (relyingparty.User, error) {
	user := relyingparty.NewUserRecordFromName(name, displayName)

	q := `INSERT INTO webauthn_users (id, name, display_name) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, q, user.WebAuthnID(), name, displayName); err != nil {
		if isUniqueViolation(err) {
			return nil, relyingparty.ErrUserAlreadyExists
		}
		return nil, storeErr("create user", err)
	}
	return user, nil
}

// Save persists changes to an existing user. Credentials are persisted
// through the credential store, so only user metadata is written here.
func (s *UserStore) Save(ctx context.Context, user relyingparty.User) error {
	q := `UPDATE webauthn_users SET display_name = $2 WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, user.WebAuthnID(), user.DisplayName())
	if err != nil {
		return storeErr("save user", err)
	}
	if tag.RowsAffected() == 0 {
		return relyingparty.ErrUserNotFound
	}
	return nil
}

// Delete removes a user by their handle.
func (s *UserStore) Delete(ctx context.Context, userID []byte) error {
	q := `DELETE FROM webauthn_users WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, userID)
	if err != nil {
		return storeErr("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return relyingparty.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) scanUser(ctx context.Context, row pgx.Row) (relyingparty.User, error) {
	var id []byte
	var name, displayName string

	err := row.Scan(&id, &name, &displayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, relyingparty.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("scan user", err)
	}

	user := relyingparty.NewUserRecord(id, name, displayName)

	creds, err := s.creds.GetByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.SetCredentials(creds)

	return user, nil
}

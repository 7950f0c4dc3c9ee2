// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package pgstore

import "context"

// Schema creates the tables the stores use. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS webauthn_users (
    id           BYTEA PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS webauthn_pending_challenges (
    user_id      BYTEA NOT NULL,
    purpose      TEXT NOT NULL,
    session_data JSONB NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, purpose)
);

CREATE TABLE IF NOT EXISTS webauthn_credentials (
    user_id       BYTEA NOT NULL,
    credential_id BYTEA NOT NULL,
    payload       JSONB NOT NULL,
    sign_count    BIGINT NOT NULL DEFAULT 0,
    clone_warning BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_used_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, credential_id)
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

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
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

func testCredential() *relyingparty.Credential {
	return &relyingparty.Credential{
		ID:     []byte("cred-1"),
		UserID: []byte("user-1"),
	}
}

// credentialRow builds a row in the shape scanCredential expects.
func credentialRow(t *testing.T, cred *relyingparty.Credential, signCount int64, cloneWarning bool) []interface{} {
	t.Helper()
	payload, err := json.Marshal(cred)
	require.NoError(t, err)
	now := time.Now().UTC()
	return []interface{}{payload, signCount, cloneWarning, now, now}
}

func TestCredentialStore_Add(t *testing.T) {
	var gotSQL string
	var gotArgs []interface{}
	db := &fakeDB{
		exec: func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			gotSQL = sql
			gotArgs = args
			return pgconn.CommandTag("INSERT 0 1"), nil
		},
	}
	store := NewCredentialStore(db)

	cred := testCredential()
	cred.Authenticator.SignCount = 7
	require.NoError(t, store.Add(context.Background(), cred))

	assert.Contains(t, gotSQL, "INSERT INTO webauthn_credentials")
	require.Len(t, gotArgs, 5)
	assert.Equal(t, cred.UserID, gotArgs[0])
	assert.Equal(t, []byte(cred.ID), gotArgs[1])
	assert.Equal(t, int64(7), gotArgs[3])
}

func TestCredentialStore_AddDuplicate(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return nil, uniqueViolationErr()
		},
	}
	store := NewCredentialStore(db)

	err := store.Add(context.Background(), testCredential())
	assert.ErrorIs(t, err, relyingparty.ErrDuplicateCredential)
}

func TestCredentialStore_AddDriverError(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return nil, errors.New("connection refused")
		},
	}
	store := NewCredentialStore(db)

	err := store.Add(context.Background(), testCredential())
	assert.ErrorIs(t, err, relyingparty.ErrStoreUnavailable)
}

func TestCredentialStore_Get(t *testing.T) {
	cred := testCredential()
	cred.Authenticator.SignCount = 1

	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			assert.Contains(t, sql, "FROM webauthn_credentials")
			// The dedicated columns override the payload snapshot
			return &fakeRow{values: credentialRow(t, cred, 5, true)}
		},
	}
	store := NewCredentialStore(db)

	got, err := store.Get(context.Background(), []byte("user-1"), []byte("cred-1"))
	require.NoError(t, err)
	assert.Equal(t, cred.ID, got.ID)
	assert.Equal(t, uint32(5), got.Authenticator.SignCount)
	assert.True(t, got.Authenticator.CloneWarning)
}

func TestCredentialStore_GetNotFound(t *testing.T) {
	db := &fakeDB{
		queryRow: func(string, []interface{}) pgx.Row {
			return &fakeRow{}
		},
	}
	store := NewCredentialStore(db)

	_, err := store.Get(context.Background(), []byte("user-1"), []byte("cred-1"))
	assert.ErrorIs(t, err, relyingparty.ErrUnknownCredential)
}

func TestCredentialStore_GetByUser(t *testing.T) {
	cred1 := testCredential()
	cred2 := testCredential()
	cred2.ID = []byte("cred-2")

	db := &fakeDB{
		query: func(string, []interface{}) (pgx.Rows, error) {
			return &fakeRows{rows: [][]interface{}{
				credentialRow(t, cred1, 1, false),
				credentialRow(t, cred2, 2, false),
			}}, nil
		},
	}
	store := NewCredentialStore(db)

	creds, err := store.GetByUser(context.Background(), []byte("user-1"))
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, []byte("cred-1"), []byte(creds[0].ID))
	assert.Equal(t, []byte("cred-2"), []byte(creds[1].ID))
}

func TestCredentialStore_GetByUserEmpty(t *testing.T) {
	db := &fakeDB{
		query: func(string, []interface{}) (pgx.Rows, error) {
			return &fakeRows{}, nil
		},
	}
	store := NewCredentialStore(db)

	creds, err := store.GetByUser(context.Background(), []byte("user-1"))
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialStore_UpdateCounter(t *testing.T) {
	db := &fakeDB{
		exec: func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			assert.Contains(t, sql, "sign_count < $3")
			return pgconn.CommandTag("UPDATE 1"), nil
		},
	}
	store := NewCredentialStore(db)

	err := store.UpdateCounter(context.Background(), []byte("user-1"), []byte("cred-1"), 9)
	assert.NoError(t, err)
}

func TestCredentialStore_UpdateCounterLostRace(t *testing.T) {
	// Conditional update matches nothing but the credential exists, so
	// a concurrent writer already advanced the counter further.
	cred := testCredential()
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 0"), nil
		},
		queryRow: func(string, []interface{}) pgx.Row {
			return &fakeRow{values: credentialRow(t, cred, 10, false)}
		},
	}
	store := NewCredentialStore(db)

	err := store.UpdateCounter(context.Background(), []byte("user-1"), []byte("cred-1"), 9)
	assert.ErrorIs(t, err, relyingparty.ErrPossibleClone)
}

func TestCredentialStore_UpdateCounterUnknownCredential(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 0"), nil
		},
		queryRow: func(string, []interface{}) pgx.Row {
			return &fakeRow{}
		},
	}
	store := NewCredentialStore(db)

	err := store.UpdateCounter(context.Background(), []byte("user-1"), []byte("cred-1"), 9)
	assert.ErrorIs(t, err, relyingparty.ErrUnknownCredential)
}

func TestCredentialStore_MarkClone(t *testing.T) {
	var gotSQL string
	db := &fakeDB{
		exec: func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.CommandTag("UPDATE 1"), nil
		},
	}
	store := NewCredentialStore(db)

	require.NoError(t, store.MarkClone(context.Background(), []byte("user-1"), []byte("cred-1")))
	assert.True(t, strings.Contains(gotSQL, "clone_warning = TRUE"))
}

func TestCredentialStore_MarkCloneUnknown(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 0"), nil
		},
	}
	store := NewCredentialStore(db)

	err := store.MarkClone(context.Background(), []byte("user-1"), []byte("cred-1"))
	assert.ErrorIs(t, err, relyingparty.ErrUnknownCredential)
}

func TestCredentialStore_Delete(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("DELETE 1"), nil
		},
	}
	store := NewCredentialStore(db)
	assert.NoError(t, store.Delete(context.Background(), []byte("user-1"), []byte("cred-1")))
}

func TestCredentialStore_DeleteUnknown(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("DELETE 0"), nil
		},
	}
	store := NewCredentialStore(db)

	err := store.Delete(context.Background(), []byte("user-1"), []byte("cred-1"))
	assert.ErrorIs(t, err, relyingparty.ErrUnknownCredential)
}

func TestCredentialStore_DeleteByUser(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("DELETE 3"), nil
		},
	}
	store := NewCredentialStore(db)
	assert.NoError(t, store.DeleteByUser(context.Background(), []byte("user-1")))
}

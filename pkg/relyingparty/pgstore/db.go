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
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// DB is the subset of the pgx API the stores need. It is satisfied by
// *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// storeErr converts a driver error into ErrStoreUnavailable, preserving
// the driver detail for logs.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", relyingparty.ErrStoreUnavailable, op, err)
}

// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgx/v4"
)

// fakeDB satisfies the DB interface through function fields, so each
// test programs exactly the driver behavior it needs.
type fakeDB struct {
	exec     func(sql string, args []interface{}) (pgconn.CommandTag, error)
	query    func(sql string, args []interface{}) (pgx.Rows, error)
	queryRow func(sql string, args []interface{}) pgx.Row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if f.exec == nil {
		return nil, fmt.Errorf("unexpected Exec: %s", sql)
	}
	return f.exec(sql, args)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if f.query == nil {
		return nil, fmt.Errorf("unexpected Query: %s", sql)
	}
	return f.query(sql, args)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if f.queryRow == nil {
		return &fakeRow{err: fmt.Errorf("unexpected QueryRow: %s", sql)}
	}
	return f.queryRow(sql, args)
}

// fakeRow is a single-row result. An empty values slice with a nil err
// behaves like pgx.ErrNoRows.
type fakeRow struct {
	values []interface{}
	err    error
}

func (r *fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	return scanValues(r.values, dest)
}

// fakeRows is a multi-row result for Query.
type fakeRows struct {
	rows   [][]interface{}
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgproto3.FieldDescription {
	return nil
}
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...interface{}) error {
	return scanValues(r.rows[r.pos-1], dest)
}
func (r *fakeRows) Values() ([]interface{}, error) { return r.rows[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte            { return nil }

func scanValues(src []interface{}, dest []interface{}) error {
	if len(src) != len(dest) {
		return fmt.Errorf("scan: %d values for %d destinations", len(src), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *[]byte:
			*d = src[i].([]byte)
		case *string:
			*d = src[i].(string)
		case *int64:
			*d = src[i].(int64)
		case *bool:
			*d = src[i].(bool)
		case *time.Time:
			*d = src[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

// uniqueViolationErr builds the driver error for a duplicate key.
func uniqueViolationErr() error {
	return &pgconn.PgError{Code: uniqueViolation}
}

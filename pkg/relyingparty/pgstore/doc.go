// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package pgstore provides PostgreSQL implementations of the
// relyingparty storage interfaces, built on pgx.
//
// The stores accept anything satisfying the DB interface, which
// *pgxpool.Pool, *pgx.Conn, and pgx.Tx all do:
//
//	pool, _ := pgxpool.Connect(ctx, dsn)
//	_ = pgstore.Migrate(ctx, pool)
//
//	svc, _ := relyingparty.NewService(relyingparty.ServiceParams{
//	    Config:          cfg,
//	    UserStore:       pgstore.NewUserStore(pool),
//	    ChallengeStore:  pgstore.NewChallengeStore(pool, 2*time.Minute),
//	    CredentialStore: pgstore.NewCredentialStore(pool),
//	})
//
// Signature counters are updated with a conditional UPDATE so a counter
// can never move backwards, regardless of how many server instances
// share the database.
package pgstore

package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Statements are idempotent so Migrate can run on every boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        email TEXT NOT NULL UNIQUE,
        username TEXT NOT NULL UNIQUE,
        role TEXT NOT NULL DEFAULT 'member',
        password_hash BYTEA NOT NULL,
        token_version INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS wallets (
        id UUID PRIMARY KEY,
        owner_id UUID NOT NULL UNIQUE REFERENCES users (id),
        balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
        currency TEXT NOT NULL DEFAULT 'USD',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id UUID PRIMARY KEY,
        wallet_id UUID NOT NULL REFERENCES wallets (id),
        kind TEXT NOT NULL,
        amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
        note TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pending',
        provider_ref TEXT UNIQUE,
        transfer_group UUID,
        reason TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        settled_at TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_created
        ON transactions (wallet_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_pending_withdrawals
        ON transactions (created_at) WHERE kind = 'withdrawal' AND status = 'pending'`,
}

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, wallet_id, kind, amount_cents, note, status, provider_ref, transfer_group, reason, created_at, settled_at`

// PostgresStore persists wallets and transactions in PostgreSQL. Every
// balance-affecting method runs inside a database transaction with row locks
// so concurrent operations against the same wallet serialize.
type PostgresStore struct {
	db       *pgxpool.Pool
	currency string
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, defaultCurrency string) *PostgresStore {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &PostgresStore{db: db, currency: defaultCurrency}
}

// GetOrCreateWallet returns the owner's wallet, creating one lazily. The
// partial insert plus unique owner constraint makes concurrent first access
// converge on a single wallet.
func (s *PostgresStore) GetOrCreateWallet(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse owner id: %w", err)
	}

	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, balance_cents, currency)
        VALUES ($1, $2, 0, $3) ON CONFLICT (owner_id) DO NOTHING`, uuid.New(), owner, s.currency)
	if err != nil {
		return Wallet{}, err
	}

	return s.WalletByOwner(ctx, ownerID)
}

// GetWallet fetches a wallet by identifier.
func (s *PostgresStore) GetWallet(ctx context.Context, walletID string) (Wallet, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, balance_cents, currency, created_at
        FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

// WalletByOwner fetches a wallet by its owning identity.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, balance_cents, currency, created_at
        FROM wallets WHERE owner_id = $1`, owner)
	return scanWallet(row)
}

// AdjustBalance applies a signed delta to the wallet balance. The conditional
// update rejects any result below zero in the same statement, which closes the
// read-then-write window between concurrent debits.
func (s *PostgresStore) AdjustBalance(ctx context.Context, walletID string, delta int64) (int64, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return 0, ErrWalletNotFound
	}
	return adjustBalance(ctx, s.db, id, delta)
}

// Balance returns the wallet's current balance in minor units.
func (s *PostgresStore) Balance(ctx context.Context, walletID string) (int64, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// ListTransactions returns the wallet's transactions, newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// GetTransaction fetches a transaction by identifier.
func (s *PostgresStore) GetTransaction(ctx context.Context, txID string) (Transaction, error) {
	id, err := uuid.Parse(txID)
	if err != nil {
		return Transaction{}, ErrUnknownTransaction
	}
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// FindByProviderRef resolves the deposit carrying the given provider reference.
func (s *PostgresStore) FindByProviderRef(ctx context.Context, ref string) (Transaction, error) {
	if ref == "" {
		return Transaction{}, ErrUnknownTransaction
	}
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE provider_ref = $1`, ref)
	return scanTransaction(row)
}

// ListPendingWithdrawals returns withdrawal requests awaiting review, oldest first.
func (s *PostgresStore) ListPendingWithdrawals(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE kind = $1 AND status = $2 ORDER BY created_at ASC LIMIT $3`,
		string(KindWithdrawal), string(StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// CreateDeposit records a pending deposit. No balance effect until settlement.
func (s *PostgresStore) CreateDeposit(ctx context.Context, walletID string, amount int64, note, providerRef string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:          uuid.New().String(),
		WalletID:    wallet.ID,
		Kind:        KindDeposit,
		Amount:      amount,
		Note:        note,
		Status:      StatusPending,
		ProviderRef: providerRef,
		CreatedAt:   time.Now().UTC(),
	}

	var ref *string
	if providerRef != "" {
		ref = &providerRef
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, amount_cents, note, status, provider_ref, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.MustParse(t.ID), uuid.MustParse(wallet.ID), string(t.Kind), t.Amount, t.Note, string(t.Status), ref, t.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// RequestWithdrawal debits the wallet and records the pending withdrawal in a
// single database transaction (debit-first policy).
func (s *PostgresStore) RequestWithdrawal(ctx context.Context, walletID string, amount int64, note string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := adjustBalance(ctx, tx, id, -amount); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:        uuid.New().String(),
		WalletID:  walletID,
		Kind:      KindWithdrawal,
		Amount:    amount,
		Note:      note,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, amount_cents, note, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.MustParse(t.ID), id, string(t.Kind), t.Amount, t.Note, string(t.Status), t.CreatedAt); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Transfer moves funds between two wallets as an all-or-nothing pair. Both
// rows clear immediately; transfers settle synchronously.
func (s *PostgresStore) Transfer(ctx context.Context, fromWalletID, toWalletID string, amount int64, note string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if fromWalletID == toWalletID {
		return TransferResult{}, ErrSameWallet
	}
	fromID, err := uuid.Parse(fromWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}
	toID, err := uuid.Parse(toWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock both wallet rows in a deterministic order so two opposing
	// transfers cannot deadlock.
	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}
	for _, id := range []uuid.UUID{first, second} {
		if err := lockWallet(ctx, tx, id); err != nil {
			return TransferResult{}, err
		}
	}

	fromBalance, err := adjustBalance(ctx, tx, fromID, -amount)
	if err != nil {
		return TransferResult{}, err
	}
	toBalance, err := adjustBalance(ctx, tx, toID, amount)
	if err != nil {
		return TransferResult{}, err
	}

	now := time.Now().UTC()
	group := uuid.New()
	debit := Transaction{
		ID:            uuid.New().String(),
		WalletID:      fromWalletID,
		Kind:          KindTransferOut,
		Amount:        amount,
		Note:          note,
		Status:        StatusCleared,
		TransferGroup: group.String(),
		CreatedAt:     now,
		SettledAt:     now,
	}
	credit := Transaction{
		ID:            uuid.New().String(),
		WalletID:      toWalletID,
		Kind:          KindTransferIn,
		Amount:        amount,
		Note:          note,
		Status:        StatusCleared,
		TransferGroup: group.String(),
		CreatedAt:     now,
		SettledAt:     now,
	}
	for _, t := range []Transaction{debit, credit} {
		if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, amount_cents, note, status, transfer_group, created_at, settled_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.MustParse(t.ID), uuid.MustParse(t.WalletID), string(t.Kind), t.Amount, t.Note, string(t.Status), group, t.CreatedAt, t.SettledAt); err != nil {
			return TransferResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{Debit: debit, Credit: credit, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

// Settle transitions a pending transaction to cleared, crediting the wallet
// for deposit-like kinds. Terminal records are returned unchanged so webhook
// replays stay idempotent.
func (s *PostgresStore) Settle(ctx context.Context, txID string) (Transaction, error) {
	return s.finalize(ctx, txID, StatusCleared, "")
}

// Deny transitions a pending transaction to denied, refunding the wallet for
// debit-first kinds. Terminal records are returned unchanged.
func (s *PostgresStore) Deny(ctx context.Context, txID, reason string) (Transaction, error) {
	return s.finalize(ctx, txID, StatusDenied, reason)
}

func (s *PostgresStore) finalize(ctx context.Context, txID string, target Status, reason string) (Transaction, error) {
	id, err := uuid.Parse(txID)
	if err != nil {
		return Transaction{}, ErrUnknownTransaction
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	if t.Status.Terminal() {
		return t, nil
	}

	var delta int64
	switch {
	case target == StatusCleared && t.Kind.CreditsOnSettle():
		delta = t.Amount
	case target == StatusDenied && t.Kind.DebitsAtCreation():
		delta = t.Amount
	}
	if delta != 0 {
		if _, err := adjustBalance(ctx, tx, uuid.MustParse(t.WalletID), delta); err != nil {
			return Transaction{}, err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $2, reason = $3, settled_at = $4 WHERE id = $1`,
		id, string(target), reason, now); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	t.Status = target
	t.Reason = reason
	t.SettledAt = now
	return t, nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lockWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var found uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&found); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWalletNotFound
		}
		return err
	}
	return nil
}

func adjustBalance(ctx context.Context, q execQuerier, id uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `UPDATE wallets SET balance_cents = balance_cents + $2
        WHERE id = $1 AND balance_cents + $2 >= 0 RETURNING balance_cents`, id, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// No row updated: either the wallet is missing or the debit would
	// overdraw it.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrWalletNotFound
	}
	return 0, ErrInsufficientFunds
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w       Wallet
		id      uuid.UUID
		ownerID uuid.UUID
		created time.Time
	)
	if err := row.Scan(&id, &ownerID, &w.Balance, &w.Currency, &created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = created.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t        Transaction
		id       uuid.UUID
		walletID uuid.UUID
		ref      *string
		group    *uuid.UUID
		created  time.Time
		settled  *time.Time
	)
	err := row.Scan(&id, &walletID, (*string)(&t.Kind), &t.Amount, &t.Note, (*string)(&t.Status), &ref, &group, &t.Reason, &created, &settled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrUnknownTransaction
		}
		return Transaction{}, err
	}
	t.ID = id.String()
	t.WalletID = walletID.String()
	if ref != nil {
		t.ProviderRef = *ref
	}
	if group != nil {
		t.TransferGroup = group.String()
	}
	t.CreatedAt = created.UTC()
	if settled != nil {
		t.SettledAt = settled.UTC()
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

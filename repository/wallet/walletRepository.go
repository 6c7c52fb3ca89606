package walletrepo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	EntryTopup = "TOPUP"
	EntryFine  = "FINE"
)

type LedgerRow struct {
	ID           int64     `json:"id" db:"id"`
	EntryType    string    `json:"entry_type" db:"entry_type"`
	Amount       float64   `json:"amount" db:"amount"`
	BalanceAfter float64   `json:"balance_after" db:"balance_after"`
	RefLoanID    *int64    `json:"ref_loan_id,omitempty" db:"ref_loan_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Repo interface {
	BalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userID int64) (float64, error)
	UpdateBalance(ctx context.Context, tx *sqlx.Tx, userID int64, newBalance float64) error
	InsertLedger(ctx context.Context, tx *sqlx.Tx, userID int64, entryType string, amount, balanceAfter float64, refLoanID *int64) error
	ListLedger(ctx context.Context, userID int64) ([]LedgerRow, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) BalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userID int64) (float64, error) {
	const q = `
		SELECT balance
		FROM users
		WHERE id = $1
		FOR UPDATE`
	var balance float64
	err := tx.QueryRowContext(ctx, q, userID).Scan(&balance)
	return balance, err
}

func (r *repo) UpdateBalance(ctx context.Context, tx *sqlx.Tx, userID int64, newBalance float64) error {
	const q = `UPDATE users SET balance = $2 WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, userID, newBalance)
	return err
}

func (r *repo) InsertLedger(ctx context.Context, tx *sqlx.Tx, userID int64, entryType string, amount, balanceAfter float64, refLoanID *int64) error {
	const q = `
		INSERT INTO wallet_ledger (user_id, entry_type, amount, balance_after, ref_loan_id)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, q, userID, entryType, amount, balanceAfter, refLoanID)
	return err
}

func (r *repo) ListLedger(ctx context.Context, userID int64) ([]LedgerRow, error) {
	const q = `
		SELECT id, entry_type, amount, balance_after, ref_loan_id, created_at
		FROM wallet_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	var out []LedgerRow
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

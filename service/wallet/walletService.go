package walletsvc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	walletrepo "liblend/repository/wallet"
)

type LedgerRow = walletrepo.LedgerRow

var ErrInvalidAmount = errors.New("invalid amount")

type TopupResult struct {
	Amount       float64 `json:"amount"`
	BalanceAfter float64 `json:"balance_after"`
}

type Service interface {
	// Topup credits the user's balance; fines settle against it.
	Topup(ctx context.Context, userID int64, amount float64) (*TopupResult, error)
	Ledger(ctx context.Context, userID int64) ([]LedgerRow, error)
}

type service struct {
	db  *sqlx.DB
	r   walletrepo.Repo
	log *slog.Logger
}

func New(db *sqlx.DB, r walletrepo.Repo, log *slog.Logger) Service {
	return &service{db: db, r: r, log: log}
}

func (s *service) Topup(ctx context.Context, userID int64, amount float64) (_ *TopupResult, err error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	balance, err := s.r.BalanceForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	newBalance := balance + amount
	if err = s.r.UpdateBalance(ctx, tx, userID, newBalance); err != nil {
		return nil, err
	}
	if err = s.r.InsertLedger(ctx, tx, userID, walletrepo.EntryTopup, amount, newBalance, nil); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.log.Info("wallet topup", "user_id", userID, "amount", amount, "balance", newBalance)
	return &TopupResult{Amount: amount, BalanceAfter: newBalance}, nil
}

func (s *service) Ledger(ctx context.Context, userID int64) ([]LedgerRow, error) {
	return s.r.ListLedger(ctx, userID)
}

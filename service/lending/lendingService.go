package lendingsvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"liblend/model"
	loanrepo "liblend/repository/loan"
	walletrepo "liblend/repository/wallet"
	inventorysvc "liblend/service/inventory"
	"liblend/util/metrics"
	"liblend/util/pgerr"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookUnavailable     ErrCode = "BOOK_UNAVAILABLE"
	ErrAlreadyBorrowed     ErrCode = "ALREADY_BORROWED"
	ErrNoActiveLoan        ErrCode = "NO_ACTIVE_LOAN"
	ErrBookNotFound        ErrCode = "BOOK_NOT_FOUND"
	ErrLoanNotFound        ErrCode = "LOAN_NOT_FOUND"
	ErrNotOwner            ErrCode = "NOT_OWNER"
	ErrNoFineDue           ErrCode = "NO_FINE_DUE"
	ErrFineAlreadyPaid     ErrCode = "FINE_ALREADY_PAID"
	ErrInsufficientBalance ErrCode = "INSUFFICIENT_BALANCE"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts the error code, empty for unexpected errors.
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

// ReturnReceipt is handed back after a successful return; the fine it
// carries is final and locked on the loan.
type ReturnReceipt struct {
	Loan        model.Loan `json:"loan"`
	OverdueDays int64      `json:"overdue_days"`
	FineAmount  float64    `json:"fine_amount"`
}

// HistoryEntry is a loan with its read-time overdue derivation attached.
type HistoryEntry struct {
	model.Loan
	DisplayStatus model.LoanStatus `json:"display_status"`
	Overdue       bool             `json:"overdue"`
	AccruedFine   float64          `json:"accrued_fine"`
}

// FineReceipt reports a wallet-settled fine.
type FineReceipt struct {
	LoanID       int64   `json:"loan_id"`
	AmountPaid   float64 `json:"amount_paid"`
	BalanceAfter float64 `json:"balance_after"`
}

// Ledger is the slice of the inventory ledger borrowing needs.
type Ledger interface {
	TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
}

// Queue is how returns hand a freed copy to the reservation queue, and how
// a borrow settles the borrower's own reservation.
type Queue interface {
	OfferNextFor(ctx context.Context, bookID int64) error
	FulfillFor(ctx context.Context, userID, bookID int64) (bool, error)
}

type Service interface {
	// Borrow atomically takes a copy and opens a loan due LoanPeriodDays out.
	Borrow(ctx context.Context, userID, bookID int64, now time.Time) (*model.Loan, error)

	// Return closes the loan, locks the final fine, frees the copy and
	// offers it to the longest-waiting reservation.
	Return(ctx context.Context, userID, bookID int64, now time.Time) (*ReturnReceipt, error)

	// History lists the user's loans newest-first with derived overdue state.
	History(ctx context.Context, userID int64, now time.Time) ([]HistoryEntry, error)

	// PayFine settles a locked fine from the user's wallet balance.
	PayFine(ctx context.Context, userID, loanID int64) (*FineReceipt, error)
}

// ----- Service implementation -----

type service struct {
	db     *sqlx.DB
	loans  loanrepo.Repo
	ledger Ledger
	queue  Queue
	wallet walletrepo.Repo
	log    *slog.Logger
}

func New(db *sqlx.DB, loans loanrepo.Repo, ledger Ledger, queue Queue, wallet walletrepo.Repo, log *slog.Logger) Service {
	return &service{db: db, loans: loans, ledger: ledger, queue: queue, wallet: wallet, log: log}
}

// Borrow runs the open-loan check, the guarded copy acquire and the loan
// insert in one transaction: all of it happens or none of it does.
func (s *service) Borrow(ctx context.Context, userID, bookID int64, now time.Time) (_ *model.Loan, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	open, err := s.loans.HasOpenLoan(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, makeErr(ErrAlreadyBorrowed)
	}

	if err = s.ledger.TryAcquireCopy(ctx, tx, bookID); err != nil {
		switch {
		case errors.Is(err, inventorysvc.ErrOutOfStock):
			metrics.BorrowRejected.WithLabelValues(string(ErrBookUnavailable)).Inc()
			return nil, makeErr(ErrBookUnavailable)
		case errors.Is(err, inventorysvc.ErrBookNotFound):
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}

	loan := &model.Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, model.LoanPeriodDays),
		Status:     model.LoanBorrowed,
	}
	if err = s.loans.Insert(ctx, tx, loan); err != nil {
		// The partial unique index backstops a concurrent double-borrow that
		// slipped past the lookup.
		if pgerr.IsUniqueViolation(err, "uq_loans_open") {
			metrics.BorrowRejected.WithLabelValues(string(ErrAlreadyBorrowed)).Inc()
			return nil, makeErr(ErrAlreadyBorrowed)
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	// The holder of a fulfilled (or still active) reservation just got their
	// copy; settle their queue entry. Best effort, the loan stands either way.
	if _, ferr := s.queue.FulfillFor(ctx, userID, bookID); ferr != nil {
		s.log.Warn("could not settle borrower reservation", "user_id", userID, "book_id", bookID, "err", ferr)
	}

	metrics.LoansBorrowed.Inc()
	s.log.Info("loan opened", "loan_id", loan.ID, "user_id", userID, "book_id", bookID, "due", loan.DueDate)
	return loan, nil
}

func (s *service) Return(ctx context.Context, userID, bookID int64, now time.Time) (_ *ReturnReceipt, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	loan, err := s.loans.OpenLoanForUpdate(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, makeErr(ErrNoActiveLoan)
	}

	days := loan.OverdueDays(now)
	fine := loan.AccruedFine(now)

	if err = s.loans.MarkReturned(ctx, tx, loan.ID, now, fine); err != nil {
		return nil, err
	}
	if err = s.ledger.ReleaseCopy(ctx, tx, bookID); err != nil {
		// Invariant violations roll the whole return back; the ledger
		// already screamed about it.
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	// The release is committed, so the freed copy is visible; now let the
	// queue mark its head fulfilled. Fulfilment is an offer only: the holder
	// still races any new borrower at the ledger.
	if qerr := s.queue.OfferNextFor(ctx, bookID); qerr != nil {
		s.log.Error("reservation offer failed", "book_id", bookID, "err", qerr)
	}

	loan.Status = model.LoanReturned
	loan.ReturnDate = &now
	loan.FineAmount = fine

	metrics.LoansReturned.Inc()
	s.log.Info("loan returned",
		"loan_id", loan.ID, "user_id", userID, "book_id", bookID,
		"overdue_days", days, "fine", fine)

	return &ReturnReceipt{Loan: *loan, OverdueDays: days, FineAmount: fine}, nil
}

func (s *service) History(ctx context.Context, userID int64, now time.Time) ([]HistoryEntry, error) {
	loans, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(loans))
	for _, l := range loans {
		e := HistoryEntry{
			Loan:          l,
			DisplayStatus: l.DerivedStatus(now),
			Overdue:       l.IsOverdue(now),
			AccruedFine:   l.FineAmount,
		}
		if l.Status == model.LoanBorrowed {
			e.AccruedFine = l.AccruedFine(now)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *service) PayFine(ctx context.Context, userID, loanID int64) (_ *FineReceipt, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	loan, err := s.loans.ByIDForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, makeErr(ErrLoanNotFound)
	}
	if loan.UserID != userID {
		return nil, makeErr(ErrNotOwner)
	}
	if loan.Status != model.LoanReturned || loan.FineAmount <= 0 {
		return nil, makeErr(ErrNoFineDue)
	}
	if loan.FinePaid {
		return nil, makeErr(ErrFineAlreadyPaid)
	}

	balance, err := s.wallet.BalanceForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance < loan.FineAmount {
		return nil, makeErr(ErrInsufficientBalance)
	}

	newBalance := balance - loan.FineAmount
	if err = s.wallet.UpdateBalance(ctx, tx, userID, newBalance); err != nil {
		return nil, err
	}
	if err = s.wallet.InsertLedger(ctx, tx, userID, walletrepo.EntryFine, -loan.FineAmount, newBalance, &loan.ID); err != nil {
		return nil, err
	}
	if err = s.loans.MarkFinePaid(ctx, tx, loan.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	metrics.FinesCollected.Add(loan.FineAmount)
	s.log.Info("fine settled", "loan_id", loan.ID, "user_id", userID, "amount", loan.FineAmount)

	return &FineReceipt{LoanID: loan.ID, AmountPaid: loan.FineAmount, BalanceAfter: newBalance}, nil
}

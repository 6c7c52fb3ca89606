package lendingsvc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"liblend/model"
	loanrepo "liblend/repository/loan"
	inventorysvc "liblend/service/inventory"
	lendingsvc "liblend/service/lending"
)

type loansMock struct {
	hasOpenFn       func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error)
	insertFn        func(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error
	openForUpdateFn func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error)
	markReturnedFn  func(ctx context.Context, tx *sqlx.Tx, loanID int64, returnedAt time.Time, fine float64) error
	byIDFn          func(ctx context.Context, tx *sqlx.Tx, loanID int64) (*model.Loan, error)
	markFinePaidFn  func(ctx context.Context, tx *sqlx.Tx, loanID int64) error
	listByUserFn    func(ctx context.Context, userID int64) ([]model.Loan, error)
	listOverdueFn   func(ctx context.Context, asOf time.Time) ([]model.Loan, error)
}

var _ loanrepo.Repo = (*loansMock)(nil)

func (m *loansMock) HasOpenLoan(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
	return m.hasOpenFn(ctx, tx, userID, bookID)
}
func (m *loansMock) Insert(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error {
	return m.insertFn(ctx, tx, loan)
}
func (m *loansMock) OpenLoanForUpdate(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error) {
	return m.openForUpdateFn(ctx, tx, userID, bookID)
}
func (m *loansMock) MarkReturned(ctx context.Context, tx *sqlx.Tx, loanID int64, returnedAt time.Time, fine float64) error {
	return m.markReturnedFn(ctx, tx, loanID, returnedAt, fine)
}
func (m *loansMock) ByIDForUpdate(ctx context.Context, tx *sqlx.Tx, loanID int64) (*model.Loan, error) {
	return m.byIDFn(ctx, tx, loanID)
}
func (m *loansMock) MarkFinePaid(ctx context.Context, tx *sqlx.Tx, loanID int64) error {
	return m.markFinePaidFn(ctx, tx, loanID)
}
func (m *loansMock) ListByUser(ctx context.Context, userID int64) ([]model.Loan, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *loansMock) ListOpenOverdue(ctx context.Context, asOf time.Time) ([]model.Loan, error) {
	return m.listOverdueFn(ctx, asOf)
}

type ledgerMock struct {
	tryFn     func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	releaseFn func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
}

func (m *ledgerMock) TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	return m.tryFn(ctx, tx, bookID)
}
func (m *ledgerMock) ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	return m.releaseFn(ctx, tx, bookID)
}

type queueMock struct {
	offerFn   func(ctx context.Context, bookID int64) error
	fulfillFn func(ctx context.Context, userID, bookID int64) (bool, error)
}

func (m *queueMock) OfferNextFor(ctx context.Context, bookID int64) error {
	if m.offerFn == nil {
		return nil
	}
	return m.offerFn(ctx, bookID)
}
func (m *queueMock) FulfillFor(ctx context.Context, userID, bookID int64) (bool, error) {
	if m.fulfillFn == nil {
		return false, nil
	}
	return m.fulfillFn(ctx, userID, bookID)
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTxDB hands out a database whose transactions begin and end without a
// server; the repos underneath are mocked, so nothing else touches it.
func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func TestBorrow_Success(t *testing.T) {
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	loans := &loansMock{
		hasOpenFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
			return false, nil
		},
		insertFn: func(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error {
			loan.ID = 77
			return nil
		},
	}
	acquired := 0
	ledger := &ledgerMock{
		tryFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			acquired++
			return nil
		},
	}
	settled := false
	queue := &queueMock{
		fulfillFn: func(ctx context.Context, userID, bookID int64) (bool, error) {
			settled = true
			return true, nil
		},
	}

	s := lendingsvc.New(db, loans, ledger, queue, nil, discardLog())
	loan, err := s.Borrow(context.Background(), 7, 3, now)
	require.NoError(t, err)
	require.Equal(t, int64(77), loan.ID)
	require.Equal(t, model.LoanBorrowed, loan.Status)
	require.Equal(t, now.AddDate(0, 0, model.LoanPeriodDays), loan.DueDate)
	require.Equal(t, 1, acquired)
	require.True(t, settled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_AlreadyBorrowed(t *testing.T) {
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	loans := &loansMock{
		hasOpenFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
			return true, nil
		},
	}
	ledger := &ledgerMock{
		tryFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			t.Fatal("no copy may be taken for a duplicate borrow")
			return nil
		},
	}

	s := lendingsvc.New(db, loans, ledger, &queueMock{}, nil, discardLog())
	_, err := s.Borrow(context.Background(), 7, 3, time.Now().UTC())
	require.Equal(t, lendingsvc.ErrAlreadyBorrowed, lendingsvc.Code(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_BookUnavailable(t *testing.T) {
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	loans := &loansMock{
		hasOpenFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
			return false, nil
		},
		insertFn: func(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error {
			t.Fatal("no loan may be created without a copy")
			return nil
		},
	}
	ledger := &ledgerMock{
		tryFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			return inventorysvc.ErrOutOfStock
		},
	}

	s := lendingsvc.New(db, loans, ledger, &queueMock{}, nil, discardLog())
	_, err := s.Borrow(context.Background(), 7, 3, time.Now().UTC())
	require.Equal(t, lendingsvc.ErrBookUnavailable, lendingsvc.Code(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_ConcurrentAgainstSharedPool(t *testing.T) {
	const copies = 3
	const borrowers = 16

	db, mock := newTxDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < borrowers; i++ {
		mock.ExpectBegin()
	}
	for i := 0; i < copies; i++ {
		mock.ExpectCommit()
	}
	for i := 0; i < borrowers-copies; i++ {
		mock.ExpectRollback()
	}

	var mu sync.Mutex
	available := copies
	ledger := &ledgerMock{
		tryFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			mu.Lock()
			defer mu.Unlock()
			if available == 0 {
				return inventorysvc.ErrOutOfStock
			}
			available--
			return nil
		},
	}

	var nextID int64
	loans := &loansMock{
		hasOpenFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
			return false, nil
		},
		insertFn: func(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error {
			loan.ID = atomic.AddInt64(&nextID, 1)
			return nil
		},
	}

	s := lendingsvc.New(db, loans, ledger, &queueMock{}, nil, discardLog())
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make([]error, borrowers)
	for i := 0; i < borrowers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Borrow(context.Background(), int64(i+1), 3, now)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.Equal(t, lendingsvc.ErrBookUnavailable, lendingsvc.Code(err))
	}
	require.Equal(t, copies, succeeded)
	require.Equal(t, 0, available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_LateReturnLocksFineAndOffers(t *testing.T) {
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	now := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	open := &model.Loan{
		ID: 5, UserID: 7, BookID: 3,
		DueDate: now.AddDate(0, 0, -6),
		Status:  model.LoanBorrowed,
	}

	var lockedFine float64
	loans := &loansMock{
		openForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error) {
			return open, nil
		},
		markReturnedFn: func(ctx context.Context, tx *sqlx.Tx, loanID int64, returnedAt time.Time, fine float64) error {
			lockedFine = fine
			return nil
		},
	}
	released := false
	ledger := &ledgerMock{
		releaseFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			released = true
			return nil
		},
	}
	var offeredBook int64
	queue := &queueMock{
		offerFn: func(ctx context.Context, bookID int64) error {
			require.True(t, released, "the freed copy must be committed before the offer")
			offeredBook = bookID
			return nil
		},
	}

	s := lendingsvc.New(db, loans, ledger, queue, nil, discardLog())
	receipt, err := s.Return(context.Background(), 7, 3, now)
	require.NoError(t, err)
	require.Equal(t, int64(6), receipt.OverdueDays)
	require.Equal(t, 6*model.FineRatePerDay, receipt.FineAmount)
	require.Equal(t, receipt.FineAmount, lockedFine)
	require.Equal(t, model.LoanReturned, receipt.Loan.Status)
	require.Equal(t, int64(3), offeredBook)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_NoActiveLoan(t *testing.T) {
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	loans := &loansMock{
		openForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error) {
			return nil, nil
		},
	}

	s := lendingsvc.New(db, loans, &ledgerMock{}, &queueMock{}, nil, discardLog())
	_, err := s.Return(context.Background(), 7, 3, time.Now().UTC())
	require.Equal(t, lendingsvc.ErrNoActiveLoan, lendingsvc.Code(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_DerivesOverdueAtReadTime(t *testing.T) {
	now := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

	onTime := model.Loan{
		ID: 1, UserID: 7, BookID: 1,
		DueDate: now.AddDate(0, 0, 3),
		Status:  model.LoanBorrowed,
	}
	pastDue := model.Loan{
		ID: 2, UserID: 7, BookID: 2,
		DueDate: now.AddDate(0, 0, -6),
		Status:  model.LoanBorrowed,
	}
	closed := model.Loan{
		ID: 3, UserID: 7, BookID: 3,
		DueDate:    now.AddDate(0, 0, -30),
		Status:     model.LoanReturned,
		FineAmount: 45,
	}

	m := &loansMock{
		listByUserFn: func(ctx context.Context, userID int64) ([]model.Loan, error) {
			require.Equal(t, int64(7), userID)
			return []model.Loan{pastDue, onTime, closed}, nil
		},
	}
	s := lendingsvc.New(nil, m, nil, nil, nil, discardLog())

	entries, err := s.History(context.Background(), 7, now)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Stored status stays BORROWED; only the display view flips to OVERDUE.
	require.Equal(t, model.LoanBorrowed, entries[0].Status)
	require.Equal(t, model.LoanOverdue, entries[0].DisplayStatus)
	require.True(t, entries[0].Overdue)
	require.Equal(t, 6*model.FineRatePerDay, entries[0].AccruedFine)

	require.Equal(t, model.LoanBorrowed, entries[1].DisplayStatus)
	require.False(t, entries[1].Overdue)
	require.Equal(t, 0.0, entries[1].AccruedFine)

	// A returned loan keeps its locked fine, no matter how old it is.
	require.Equal(t, model.LoanReturned, entries[2].DisplayStatus)
	require.False(t, entries[2].Overdue)
	require.Equal(t, 45.0, entries[2].AccruedFine)
}

func TestHistory_RepoError(t *testing.T) {
	m := &loansMock{
		listByUserFn: func(ctx context.Context, userID int64) ([]model.Loan, error) {
			return nil, errors.New("db down")
		},
	}
	s := lendingsvc.New(nil, m, nil, nil, nil, discardLog())

	_, err := s.History(context.Background(), 7, time.Now())
	require.Error(t, err)
}

func TestCodeExtractor(t *testing.T) {
	require.Equal(t, lendingsvc.ErrCode(""), lendingsvc.Code(errors.New("plain")))
	require.Equal(t, lendingsvc.ErrCode(""), lendingsvc.Code(nil))
}

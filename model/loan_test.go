package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"liblend/model"
)

func openLoan(due time.Time) model.Loan {
	return model.Loan{
		ID:         1,
		UserID:     7,
		BookID:     3,
		BorrowDate: due.AddDate(0, 0, -model.LoanPeriodDays),
		DueDate:    due,
		Status:     model.LoanBorrowed,
	}
}

func TestIsOverdue(t *testing.T) {
	due := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	l := openLoan(due)

	require.False(t, l.IsOverdue(due.Add(-time.Hour)))
	// Exactly at the due instant the loan is still on time.
	require.False(t, l.IsOverdue(due))
	require.True(t, l.IsOverdue(due.Add(time.Second)))

	returned := l
	returned.Status = model.LoanReturned
	require.False(t, returned.IsOverdue(due.AddDate(0, 0, 30)))
}

func TestOverdueDays_WholeDaysOnly(t *testing.T) {
	due := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	l := openLoan(due)

	require.Equal(t, int64(0), l.OverdueDays(due))
	// Past due but less than a full day gone counts as zero days.
	require.Equal(t, int64(0), l.OverdueDays(due.Add(23*time.Hour)))
	require.Equal(t, int64(1), l.OverdueDays(due.Add(24*time.Hour)))
	require.Equal(t, int64(1), l.OverdueDays(due.Add(47*time.Hour)))
	require.Equal(t, int64(6), l.OverdueDays(due.AddDate(0, 0, 6)))
}

func TestAccruedFine(t *testing.T) {
	borrow := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := openLoan(borrow.AddDate(0, 0, model.LoanPeriodDays))

	// On time: nothing owed.
	require.Equal(t, 0.0, l.AccruedFine(borrow.AddDate(0, 0, 10)))

	// Returned on day 20 of a 14-day loan: 6 whole days late.
	day20 := borrow.AddDate(0, 0, 20)
	require.Equal(t, int64(6), l.OverdueDays(day20))
	require.Equal(t, 6*model.FineRatePerDay, l.AccruedFine(day20))
}

func TestDerivedStatus(t *testing.T) {
	due := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	l := openLoan(due)

	require.Equal(t, model.LoanBorrowed, l.DerivedStatus(due))
	require.Equal(t, model.LoanOverdue, l.DerivedStatus(due.Add(time.Hour)))

	l.Status = model.LoanReturned
	require.Equal(t, model.LoanReturned, l.DerivedStatus(due.AddDate(0, 0, 30)))
}

package model

import "time"

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
	// LoanOverdue is never stored; it is derived from an open loan and the
	// clock at read time. See IsOverdue.
	LoanOverdue LoanStatus = "OVERDUE"
)

const (
	// LoanPeriodDays is the fixed lending period.
	LoanPeriodDays = 14
	// FineRatePerDay is charged per whole day a loan stays open past due.
	FineRatePerDay = 5.0
)

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	FineAmount float64    `json:"fine_amount" db:"fine_amount"`
	FinePaid   bool       `json:"fine_paid" db:"fine_paid"`
}

// IsOverdue reports whether the loan is open and past due at the given
// instant. Every overdue/fine figure in the system (return receipts, history
// listings, admin reports) must come from these methods so the views never
// disagree.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanBorrowed && now.After(l.DueDate)
}

// OverdueDays counts whole days past due, zero when not overdue.
func (l *Loan) OverdueDays(now time.Time) int64 {
	if !l.IsOverdue(now) {
		return 0
	}
	return int64(now.Sub(l.DueDate) / (24 * time.Hour))
}

// AccruedFine is the fine owed at the given instant. For a returned loan the
// stored FineAmount is final; use that instead.
func (l *Loan) AccruedFine(now time.Time) float64 {
	return float64(l.OverdueDays(now)) * FineRatePerDay
}

// DerivedStatus folds the read-time overdue derivation into the status enum
// for presentation.
func (l *Loan) DerivedStatus(now time.Time) LoanStatus {
	if l.IsOverdue(now) {
		return LoanOverdue
	}
	return l.Status
}

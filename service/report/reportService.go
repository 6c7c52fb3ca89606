package reportsvc

import (
	"context"
	"time"

	reportrepo "liblend/repository/report"
)

// Report aggregates what the admin dashboard and reports page show. The
// overdue figure comes from the same predicate as the per-loan derivation.
type Report struct {
	TotalBooks     int64                        `json:"total_books"`
	TotalUsers     int64                        `json:"total_users"`
	TotalBorrowed  int64                        `json:"total_borrowed"`
	TotalReturned  int64                        `json:"total_returned"`
	TotalAvailable int64                        `json:"total_available"`
	OverdueLoans   int64                        `json:"overdue_loans"`
	MostBorrowed   []reportrepo.MostBorrowedRow `json:"most_borrowed"`
}

type Service interface {
	Report(ctx context.Context, now time.Time) (*Report, error)
	Dashboard(ctx context.Context, now time.Time) (map[string]int64, error)
}

type service struct{ r reportrepo.Repo }

func New(r reportrepo.Repo) Service { return &service{r: r} }

func (s *service) Report(ctx context.Context, now time.Time) (*Report, error) {
	out := &Report{}
	var err error

	if out.TotalBooks, err = s.r.TotalBooks(ctx); err != nil {
		return nil, err
	}
	if out.TotalUsers, err = s.r.TotalUsers(ctx); err != nil {
		return nil, err
	}
	if out.TotalBorrowed, err = s.r.CountLoansByStatus(ctx, "BORROWED"); err != nil {
		return nil, err
	}
	if out.TotalReturned, err = s.r.CountLoansByStatus(ctx, "RETURNED"); err != nil {
		return nil, err
	}
	if out.TotalAvailable, err = s.r.TotalAvailable(ctx); err != nil {
		return nil, err
	}
	if out.OverdueLoans, err = s.r.CountOverdue(ctx, now); err != nil {
		return nil, err
	}
	if out.MostBorrowed, err = s.r.MostBorrowed(ctx, 10); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Dashboard(ctx context.Context, now time.Time) (map[string]int64, error) {
	books, err := s.r.TotalBooks(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.r.TotalUsers(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.r.CountLoansByStatus(ctx, "BORROWED")
	if err != nil {
		return nil, err
	}
	overdue, err := s.r.CountOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	return map[string]int64{
		"total_books":   books,
		"total_users":   users,
		"active_loans":  active,
		"overdue_loans": overdue,
	}, nil
}

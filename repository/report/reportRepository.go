package reportrepo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type MostBorrowedRow struct {
	BookID      int64  `json:"book_id" db:"book_id"`
	Title       string `json:"title" db:"title"`
	BorrowCount int64  `json:"borrow_count" db:"borrow_count"`
}

type Repo interface {
	TotalBooks(ctx context.Context) (int64, error)
	TotalUsers(ctx context.Context) (int64, error)
	TotalAvailable(ctx context.Context) (int64, error)
	CountLoansByStatus(ctx context.Context, status string) (int64, error)
	CountOverdue(ctx context.Context, asOf time.Time) (int64, error)
	MostBorrowed(ctx context.Context, limit int) ([]MostBorrowedRow, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) TotalBooks(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM books`)
}

func (r *repo) TotalUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

// TotalAvailable sums the ledger's availability counters across the catalog.
func (r *repo) TotalAvailable(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COALESCE(SUM(available_copies), 0) FROM books`)
}

func (r *repo) CountLoansByStatus(ctx context.Context, status string) (int64, error) {
	const q = `SELECT COUNT(*) FROM loans WHERE status = $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, status).Scan(&n)
	return n, err
}

// CountOverdue uses the same predicate as model.Loan.IsOverdue so dashboard
// counts and per-loan views agree.
func (r *repo) CountOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM loans WHERE status = 'BORROWED' AND due_date < $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, asOf).Scan(&n)
	return n, err
}

func (r *repo) MostBorrowed(ctx context.Context, limit int) ([]MostBorrowedRow, error) {
	const q = `
		SELECT l.book_id AS book_id, b.title AS title, COUNT(*) AS borrow_count
		FROM loans l
		JOIN books b ON b.id = l.book_id
		GROUP BY l.book_id, b.title
		ORDER BY borrow_count DESC, b.title
		LIMIT $1`
	var out []MostBorrowedRow
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) count(ctx context.Context, q string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

package loanrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"liblend/model"
)

type Repo interface {
	HasOpenLoan(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error
	OpenLoanForUpdate(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error)
	MarkReturned(ctx context.Context, tx *sqlx.Tx, loanID int64, returnedAt time.Time, fine float64) error

	ByIDForUpdate(ctx context.Context, tx *sqlx.Tx, loanID int64) (*model.Loan, error)
	MarkFinePaid(ctx context.Context, tx *sqlx.Tx, loanID int64) error

	ListByUser(ctx context.Context, userID int64) ([]model.Loan, error)
	ListOpenOverdue(ctx context.Context, asOf time.Time) ([]model.Loan, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) HasOpenLoan(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE user_id = $1 AND book_id = $2 AND status = 'BORROWED'
		)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error {
	const q = `
		INSERT INTO loans (user_id, book_id, borrow_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return tx.QueryRowContext(ctx, q,
		loan.UserID, loan.BookID, loan.BorrowDate, loan.DueDate, loan.Status,
	).Scan(&loan.ID)
}

func (r *repo) OpenLoanForUpdate(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (*model.Loan, error) {
	const q = `
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount, fine_paid
		FROM loans
		WHERE user_id = $1 AND book_id = $2 AND status = 'BORROWED'
		FOR UPDATE`
	var l model.Loan
	if err := tx.GetContext(ctx, &l, q, userID, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *repo) MarkReturned(ctx context.Context, tx *sqlx.Tx, loanID int64, returnedAt time.Time, fine float64) error {
	const q = `
		UPDATE loans
		SET status = 'RETURNED',
			return_date = $2,
			fine_amount = $3
		WHERE id = $1
		AND status = 'BORROWED'`
	res, err := tx.ExecContext(ctx, q, loanID, returnedAt, fine)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sqlx.Tx, loanID int64) (*model.Loan, error) {
	const q = `
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount, fine_paid
		FROM loans
		WHERE id = $1
		FOR UPDATE`
	var l model.Loan
	if err := tx.GetContext(ctx, &l, q, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *repo) MarkFinePaid(ctx context.Context, tx *sqlx.Tx, loanID int64) error {
	const q = `UPDATE loans SET fine_paid = TRUE WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, loanID)
	return err
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Loan, error) {
	const q = `
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount, fine_paid
		FROM loans
		WHERE user_id = $1
		ORDER BY borrow_date DESC, id DESC`
	var out []model.Loan
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ListOpenOverdue(ctx context.Context, asOf time.Time) ([]model.Loan, error) {
	// Same predicate as model.Loan.IsOverdue, expressed in SQL.
	const q = `
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, fine_amount, fine_paid
		FROM loans
		WHERE status = 'BORROWED'
		AND due_date < $1
		ORDER BY due_date`
	var out []model.Loan
	if err := r.db.SelectContext(ctx, &out, q, asOf); err != nil {
		return nil, err
	}
	return out, nil
}

package inventoryrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrOutOfStock means no copy was free at the moment of the guarded
	// decrement.
	ErrOutOfStock = errors.New("no available copies")

	// ErrBookNotFound means the book row does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrInvariantViolation means a release would push available_copies past
	// total_copies. The counters were already wrong before this call.
	ErrInvariantViolation = errors.New("release exceeds total copies")
)

type Repo interface {
	TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (available, total int, err error)
	Availability(ctx context.Context, bookID int64) (available, total int, err error)
	AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (available, total int, err error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

// TryAcquireCopy decrements availability iff a copy is free. The guard and
// the decrement are one statement, so concurrent callers on the same book
// serialize on the row and exactly one wins the last copy.
func (r *repo) TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	const q = `
		UPDATE books
		SET available_copies = available_copies - 1
		WHERE id = $1
		AND available_copies > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return r.classifyMiss(ctx, tx, bookID, ErrOutOfStock)
	}
	return nil
}

// ReleaseCopy increments availability, guarded so it can never exceed the
// total. Zero rows on an existing book is an invariant violation, not a
// user error.
func (r *repo) ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	const q = `
		UPDATE books
		SET available_copies = available_copies + 1
		WHERE id = $1
		AND available_copies < total_copies`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return r.classifyMiss(ctx, tx, bookID, ErrInvariantViolation)
	}
	return nil
}

// SetTotalCopies applies an admin total adjustment. When the new total is
// below the number of copies currently on loan, availability clamps to zero
// instead of going negative.
func (r *repo) SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
	const q = `
		UPDATE books
		SET total_copies = $2,
			available_copies = LEAST($2, GREATEST(0, $2 - (total_copies - available_copies)))
		WHERE id = $1
		RETURNING available_copies, total_copies`
	var available, total int
	err := r.db.QueryRowContext(ctx, q, bookID, newTotal).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrBookNotFound
	}
	return available, total, err
}

func (r *repo) Availability(ctx context.Context, bookID int64) (int, int, error) {
	const q = `SELECT available_copies, total_copies FROM books WHERE id = $1`
	var available, total int
	err := r.db.QueryRowContext(ctx, q, bookID).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrBookNotFound
	}
	return available, total, err
}

// AvailabilityForUpdate locks the book row so a reservation guard cannot
// race a concurrent release on the same book.
func (r *repo) AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (int, int, error) {
	const q = `SELECT available_copies, total_copies FROM books WHERE id = $1 FOR UPDATE`
	var available, total int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrBookNotFound
	}
	return available, total, err
}

// classifyMiss tells a missing book apart from a guard failure.
func (r *repo) classifyMiss(ctx context.Context, tx *sqlx.Tx, bookID int64, guardErr error) error {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`
	if err := tx.QueryRowContext(ctx, q, bookID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrBookNotFound
	}
	return guardErr
}

package reservationrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"liblend/model"
)

type Repo interface {
	ActiveExists(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error
	CancelActive(ctx context.Context, userID, bookID int64) (bool, error)

	HeadActiveForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.Reservation, error)
	MarkFulfilled(ctx context.Context, tx *sqlx.Tx, reservationID int64) error
	FulfillActive(ctx context.Context, userID, bookID int64) (bool, error)

	ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) ActiveExists(ctx context.Context, tx *sqlx.Tx, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE user_id = $1 AND book_id = $2 AND status = 'ACTIVE'
		)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	const q = `
		INSERT INTO reservations (user_id, book_id, reservation_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	return tx.QueryRowContext(ctx, q,
		res.UserID, res.BookID, res.ReservationDate, res.Status,
	).Scan(&res.ID)
}

func (r *repo) CancelActive(ctx context.Context, userID, bookID int64) (bool, error) {
	const q = `
		UPDATE reservations
		SET status = 'CANCELLED'
		WHERE user_id = $1 AND book_id = $2 AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, q, userID, bookID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// HeadActiveForUpdate locks the longest-waiting ACTIVE reservation for the
// book. SKIP LOCKED keeps two concurrent offers from fighting over one row.
func (r *repo) HeadActiveForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_date, status
		FROM reservations
		WHERE book_id = $1 AND status = 'ACTIVE'
		ORDER BY reservation_date, id
		FOR UPDATE SKIP LOCKED
		LIMIT 1`
	var res model.Reservation
	if err := tx.GetContext(ctx, &res, q, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *repo) MarkFulfilled(ctx context.Context, tx *sqlx.Tx, reservationID int64) error {
	const q = `UPDATE reservations SET status = 'FULFILLED' WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, reservationID)
	return err
}

// FulfillActive marks the user's own ACTIVE reservation fulfilled, if one
// exists. Used when the holder borrows the book themselves.
func (r *repo) FulfillActive(ctx context.Context, userID, bookID int64) (bool, error) {
	const q = `
		UPDATE reservations
		SET status = 'FULFILLED'
		WHERE user_id = $1 AND book_id = $2 AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, q, userID, bookID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_date, status
		FROM reservations
		WHERE user_id = $1
		ORDER BY reservation_date DESC, id DESC`
	var out []model.Reservation
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

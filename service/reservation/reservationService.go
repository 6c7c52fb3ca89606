package reservationsvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"liblend/model"
	reservationrepo "liblend/repository/reservation"
	inventorysvc "liblend/service/inventory"
	"liblend/util/metrics"
	"liblend/util/pgerr"
)

type ErrCode string

const (
	ErrAlreadyReserved ErrCode = "ALREADY_RESERVED"
	ErrCopyAvailable   ErrCode = "COPY_AVAILABLE"
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrBookNotFound    ErrCode = "BOOK_NOT_FOUND"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Ledger is the availability read the reserve guard needs; the row lock
// serializes the guard against a concurrent release on the same book.
type Ledger interface {
	AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (available, total int, err error)
}

// Events receives reservation notifications; fan-out beyond bookkeeping.
type Events interface {
	ReservationFulfilled(ctx context.Context, res model.Reservation) error
}

type Service interface {
	// Reserve queues the user for the book's next freed copy. Only valid
	// while no copy is available; callers with stock in hand should borrow.
	Reserve(ctx context.Context, userID, bookID int64, now time.Time) (*model.Reservation, error)

	// Cancel withdraws the user's ACTIVE reservation.
	Cancel(ctx context.Context, userID, bookID int64) error

	// OfferNextFor marks the longest-waiting ACTIVE reservation FULFILLED
	// after a copy frees up. It never creates a loan; the holder still has
	// to borrow, racing other callers at the ledger.
	OfferNextFor(ctx context.Context, bookID int64) error

	// FulfillFor settles the user's own ACTIVE reservation when they borrow.
	FulfillFor(ctx context.Context, userID, bookID int64) (bool, error)

	// ListFor lists the user's reservations, newest first, all states.
	ListFor(ctx context.Context, userID int64) ([]model.Reservation, error)
}

type service struct {
	db     *sqlx.DB
	r      reservationrepo.Repo
	ledger Ledger
	events Events
	log    *slog.Logger
}

func New(db *sqlx.DB, r reservationrepo.Repo, ledger Ledger, events Events, log *slog.Logger) Service {
	return &service{db: db, r: r, ledger: ledger, events: events, log: log}
}

func (s *service) Reserve(ctx context.Context, userID, bookID int64, now time.Time) (_ *model.Reservation, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	available, _, err := s.ledger.AvailabilityForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, inventorysvc.ErrBookNotFound) {
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}
	if available > 0 {
		// A free copy must be borrowed, not blocked behind a reservation.
		return nil, makeErr(ErrCopyAvailable)
	}

	exists, err := s.r.ActiveExists(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, makeErr(ErrAlreadyReserved)
	}

	res := &model.Reservation{
		UserID:          userID,
		BookID:          bookID,
		ReservationDate: now,
		Status:          model.ReservationActive,
	}
	if err = s.r.Insert(ctx, tx, res); err != nil {
		if pgerr.IsUniqueViolation(err, "uq_reservations_active") {
			return nil, makeErr(ErrAlreadyReserved)
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	metrics.ReservationsCreated.Inc()
	s.log.Info("reservation queued", "reservation_id", res.ID, "user_id", userID, "book_id", bookID)
	return res, nil
}

func (s *service) Cancel(ctx context.Context, userID, bookID int64) error {
	ok, err := s.r.CancelActive(ctx, userID, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return makeErr(ErrNotFound)
	}
	s.log.Info("reservation cancelled", "user_id", userID, "book_id", bookID)
	return nil
}

func (s *service) OfferNextFor(ctx context.Context, bookID int64) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	head, err := s.r.HeadActiveForUpdate(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if head == nil {
		// Empty queue, nothing to offer.
		return tx.Commit()
	}

	if err = s.r.MarkFulfilled(ctx, tx, head.ID); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	head.Status = model.ReservationFulfilled
	metrics.ReservationsFulfilled.Inc()
	s.log.Info("reservation fulfilled",
		"reservation_id", head.ID, "user_id", head.UserID, "book_id", bookID)

	if s.events != nil {
		if perr := s.events.ReservationFulfilled(ctx, *head); perr != nil {
			s.log.Warn("fulfilled notification failed", "reservation_id", head.ID, "err", perr)
		}
	}
	return nil
}

func (s *service) FulfillFor(ctx context.Context, userID, bookID int64) (bool, error) {
	ok, err := s.r.FulfillActive(ctx, userID, bookID)
	if err != nil {
		return false, err
	}
	if ok {
		metrics.ReservationsFulfilled.Inc()
		s.log.Info("reservation settled by own borrow", "user_id", userID, "book_id", bookID)
	}
	return ok, nil
}

func (s *service) ListFor(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return s.r.ListByUser(ctx, userID)
}

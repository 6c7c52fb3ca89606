package inventorysvc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	inventoryrepo "liblend/repository/inventory"
	"liblend/util/metrics"
)

// Sentinels re-exported for consumers so they never import the repo package.
var (
	ErrOutOfStock         = inventoryrepo.ErrOutOfStock
	ErrBookNotFound       = inventoryrepo.ErrBookNotFound
	ErrInvariantViolation = inventoryrepo.ErrInvariantViolation
)

// Ledger is the single owner of per-book copy counters. TryAcquireCopy and
// ReleaseCopy are the only mutation points for availability; both run as one
// guarded statement inside the caller's transaction.
type Ledger interface {
	TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (available, total int, err error)
	Availability(ctx context.Context, bookID int64) (available, total int, err error)
	AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (available, total int, err error)
}

type ledger struct {
	r   inventoryrepo.Repo
	log *slog.Logger
}

func New(r inventoryrepo.Repo, log *slog.Logger) Ledger {
	return &ledger{r: r, log: log}
}

func (l *ledger) TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	return l.r.TryAcquireCopy(ctx, tx, bookID)
}

func (l *ledger) ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	err := l.r.ReleaseCopy(ctx, tx, bookID)
	if errors.Is(err, ErrInvariantViolation) {
		// The counters were corrupt before this call. Loud, never swallowed.
		l.log.Error("inventory invariant violation: release would exceed total",
			"book_id", bookID)
		metrics.InvariantViolations.Inc()
	}
	return err
}

func (l *ledger) SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
	available, total, err := l.r.SetTotalCopies(ctx, bookID, newTotal)
	if err == nil {
		l.log.Info("total copies adjusted",
			"book_id", bookID, "total", total, "available", available)
	}
	return available, total, err
}

func (l *ledger) Availability(ctx context.Context, bookID int64) (int, int, error) {
	return l.r.Availability(ctx, bookID)
}

func (l *ledger) AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (int, int, error) {
	return l.r.AvailabilityForUpdate(ctx, tx, bookID)
}

package inventorysvc_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	inventoryrepo "liblend/repository/inventory"
	inventorysvc "liblend/service/inventory"
)

type repoMock struct {
	tryAcquireFn func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	releaseFn    func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	setTotalFn   func(ctx context.Context, bookID int64, newTotal int) (int, int, error)
	availFn      func(ctx context.Context, bookID int64) (int, int, error)
	availLockFn  func(ctx context.Context, tx *sqlx.Tx, bookID int64) (int, int, error)
}

var _ inventoryrepo.Repo = (*repoMock)(nil)

func (m *repoMock) TryAcquireCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	return m.tryAcquireFn(ctx, tx, bookID)
}
func (m *repoMock) ReleaseCopy(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	return m.releaseFn(ctx, tx, bookID)
}
func (m *repoMock) SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
	return m.setTotalFn(ctx, bookID, newTotal)
}
func (m *repoMock) Availability(ctx context.Context, bookID int64) (int, int, error) {
	return m.availFn(ctx, bookID)
}
func (m *repoMock) AvailabilityForUpdate(ctx context.Context, tx *sqlx.Tx, bookID int64) (int, int, error) {
	return m.availLockFn(ctx, tx, bookID)
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReleaseCopy_InvariantViolationPropagates(t *testing.T) {
	m := &repoMock{
		releaseFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			return inventoryrepo.ErrInvariantViolation
		},
	}
	l := inventorysvc.New(m, discardLog())

	// A release that would push available past total must fail loudly, not
	// clamp or no-op.
	err := l.ReleaseCopy(context.Background(), nil, 3)
	require.ErrorIs(t, err, inventorysvc.ErrInvariantViolation)
}

func TestTryAcquireCopy_OutOfStockPropagates(t *testing.T) {
	m := &repoMock{
		tryAcquireFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			return inventoryrepo.ErrOutOfStock
		},
	}
	l := inventorysvc.New(m, discardLog())

	err := l.TryAcquireCopy(context.Background(), nil, 3)
	require.ErrorIs(t, err, inventorysvc.ErrOutOfStock)
}

package booksvc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"liblend/model"
	bookrepo "liblend/repository/book"
	booksvc "liblend/service/book"
	inventorysvc "liblend/service/inventory"
)

type repoMock struct {
	createFn func(ctx context.Context, b *model.Book) error
	updateFn func(ctx context.Context, b *model.Book) error
	deleteFn func(ctx context.Context, id int64) error
	byIDFn   func(ctx context.Context, id int64) (*model.Book, error)
	listFn   func(ctx context.Context) ([]model.Book, error)
	searchFn func(ctx context.Context, keyword string) ([]model.Book, error)
}

var _ bookrepo.Repo = (*repoMock)(nil)

func (m *repoMock) Create(ctx context.Context, b *model.Book) error { return m.createFn(ctx, b) }
func (m *repoMock) Update(ctx context.Context, b *model.Book) error { return m.updateFn(ctx, b) }
func (m *repoMock) Delete(ctx context.Context, id int64) error      { return m.deleteFn(ctx, id) }
func (m *repoMock) ByID(ctx context.Context, id int64) (*model.Book, error) {
	return m.byIDFn(ctx, id)
}
func (m *repoMock) List(ctx context.Context) ([]model.Book, error) { return m.listFn(ctx) }
func (m *repoMock) Search(ctx context.Context, keyword string) ([]model.Book, error) {
	return m.searchFn(ctx, keyword)
}

type ledgerMock struct {
	setTotalFn func(ctx context.Context, bookID int64, newTotal int) (int, int, error)
}

func (m *ledgerMock) SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
	return m.setTotalFn(ctx, bookID, newTotal)
}

func TestCreate_SeedsAvailableFromTotal(t *testing.T) {
	m := &repoMock{
		createFn: func(ctx context.Context, b *model.Book) error {
			b.ID = 42
			return nil
		},
	}
	s := booksvc.New(m, &ledgerMock{})

	b := &model.Book{Title: "Clean Code", Author: "Martin", ISBN: "978-0", Category: "prog", TotalCopies: 5}
	require.NoError(t, s.Create(context.Background(), b))
	require.Equal(t, int64(42), b.ID)
	require.Equal(t, 5, b.AvailableCopies)
}

func TestCreate_IsbnTaken(t *testing.T) {
	m := &repoMock{
		createFn: func(ctx context.Context, b *model.Book) error {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "books_isbn_key"}
		},
	}
	s := booksvc.New(m, &ledgerMock{})

	err := s.Create(context.Background(), &model.Book{ISBN: "978-0"})
	require.Equal(t, booksvc.ErrIsbnTaken, booksvc.Code(err))
}

func TestUpdate_NotFound(t *testing.T) {
	m := &repoMock{
		updateFn: func(ctx context.Context, b *model.Book) error { return bookrepo.ErrNotFound },
	}
	s := booksvc.New(m, &ledgerMock{})

	err := s.Update(context.Background(), &model.Book{ID: 99})
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestDelete_NotFound(t *testing.T) {
	m := &repoMock{
		deleteFn: func(ctx context.Context, id int64) error { return bookrepo.ErrNotFound },
	}
	s := booksvc.New(m, &ledgerMock{})

	err := s.Delete(context.Background(), 99)
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestGet_NotFound(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return nil, bookrepo.ErrNotFound
		},
	}
	s := booksvc.New(m, &ledgerMock{})

	_, err := s.Get(context.Background(), 99)
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestSetTotalCopies_RoutesThroughLedger(t *testing.T) {
	var gotBook int64
	var gotTotal int
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return &model.Book{ID: id, TotalCopies: 7, AvailableCopies: 4}, nil
		},
	}
	l := &ledgerMock{
		setTotalFn: func(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
			gotBook, gotTotal = bookID, newTotal
			return 4, 7, nil
		},
	}
	s := booksvc.New(m, l)

	b, err := s.SetTotalCopies(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), gotBook)
	require.Equal(t, 7, gotTotal)
	require.Equal(t, 7, b.TotalCopies)
}

func TestSetTotalCopies_BookNotFound(t *testing.T) {
	l := &ledgerMock{
		setTotalFn: func(ctx context.Context, bookID int64, newTotal int) (int, int, error) {
			return 0, 0, inventorysvc.ErrBookNotFound
		},
	}
	s := booksvc.New(&repoMock{}, l)

	_, err := s.SetTotalCopies(context.Background(), 99, 3)
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestPassThroughs(t *testing.T) {
	m := &repoMock{
		listFn: func(ctx context.Context) ([]model.Book, error) {
			return []model.Book{{ID: 1}}, nil
		},
		searchFn: func(ctx context.Context, keyword string) ([]model.Book, error) {
			require.Equal(t, "go", keyword)
			return nil, errors.New("boom")
		},
	}
	s := booksvc.New(m, &ledgerMock{})

	books, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)

	_, err = s.Search(context.Background(), "go")
	require.Error(t, err)
}

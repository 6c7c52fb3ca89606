package booksvc

import (
	"context"
	"errors"

	"liblend/model"
	bookrepo "liblend/repository/book"
	inventorysvc "liblend/service/inventory"
	"liblend/util/pgerr"
)

type ErrCode string

const (
	ErrNotFound  ErrCode = "BOOK_NOT_FOUND"
	ErrIsbnTaken ErrCode = "ISBN_TAKEN"
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

// Ledger is the only writer of copy totals; catalog edits route total
// adjustments through it.
type Ledger interface {
	SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (available, total int, err error)
}

type Service interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, keyword string) ([]model.Book, error)
	SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (*model.Book, error)
}

type service struct {
	r      bookrepo.Repo
	ledger Ledger
}

func New(r bookrepo.Repo, ledger Ledger) Service { return &service{r: r, ledger: ledger} }

func (s *service) Create(ctx context.Context, b *model.Book) error {
	// A fresh title starts with every copy on the shelf.
	b.AvailableCopies = b.TotalCopies
	if err := s.r.Create(ctx, b); err != nil {
		if pgerr.IsUniqueViolation(err, "") {
			return makeErr(ErrIsbnTaken)
		}
		return err
	}
	return nil
}

func (s *service) Update(ctx context.Context, b *model.Book) error {
	if err := s.r.Update(ctx, b); err != nil {
		if errors.Is(err, bookrepo.ErrNotFound) {
			return makeErr(ErrNotFound)
		}
		if pgerr.IsUniqueViolation(err, "") {
			return makeErr(ErrIsbnTaken)
		}
		return err
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := s.r.Delete(ctx, id); err != nil {
		if errors.Is(err, bookrepo.ErrNotFound) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *service) Get(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if errors.Is(err, bookrepo.ErrNotFound) {
		return nil, makeErr(ErrNotFound)
	}
	return b, err
}

func (s *service) List(ctx context.Context) ([]model.Book, error) { return s.r.List(ctx) }

func (s *service) Search(ctx context.Context, keyword string) ([]model.Book, error) {
	return s.r.Search(ctx, keyword)
}

func (s *service) SetTotalCopies(ctx context.Context, bookID int64, newTotal int) (*model.Book, error) {
	if _, _, err := s.ledger.SetTotalCopies(ctx, bookID, newTotal); err != nil {
		if errors.Is(err, inventorysvc.ErrBookNotFound) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	b, err := s.r.ByID(ctx, bookID)
	if errors.Is(err, bookrepo.ErrNotFound) {
		return nil, makeErr(ErrNotFound)
	}
	return b, err
}

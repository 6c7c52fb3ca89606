package bookrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"liblend/model"
)

var ErrNotFound = errors.New("book not found")

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, keyword string) ([]model.Book, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

const bookColumns = `id, title, author, isbn, category, price, total_copies, available_copies, created_at`

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
		INSERT INTO books (title, author, isbn, category, price, total_copies, available_copies)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		b.Title, b.Author, b.ISBN, b.Category, b.Price, b.TotalCopies, b.AvailableCopies,
	).Scan(&b.ID, &b.CreatedAt)
}

// Update touches catalog attributes only. Copy counters belong to the
// inventory ledger.
func (r *repo) Update(ctx context.Context, b *model.Book) error {
	const q = `
		UPDATE books
		SET title = $2, author = $3, isbn = $4, category = $5, price = $6
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Price)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM books WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	var b model.Book
	if err := r.db.GetContext(ctx, &b, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books ORDER BY id DESC`
	var out []model.Book
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Search(ctx context.Context, keyword string) ([]model.Book, error) {
	const q = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE '%' || $1 || '%'
		OR author ILIKE '%' || $1 || '%'
		OR category ILIKE '%' || $1 || '%'
		ORDER BY title`
	var out []model.Book
	if err := r.db.SelectContext(ctx, &out, q, keyword); err != nil {
		return nil, err
	}
	return out, nil
}

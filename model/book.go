package model

import "time"

// Book carries catalog attributes plus the copy counters owned by the
// inventory ledger. AvailableCopies changes only through ledger operations
// or an admin total adjustment, never directly.
type Book struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Category        string    `json:"category" db:"category"`
	Price           float64   `json:"price" db:"price"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func (b *Book) OnLoan() int { return b.TotalCopies - b.AvailableCopies }

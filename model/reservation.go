package model

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a user's standing request for the next freed copy of a
// book. At most one ACTIVE reservation exists per (user, book) pair.
// Fulfillment only marks the reservation; it never creates a loan.
type Reservation struct {
	ID              int64             `json:"id" db:"id"`
	UserID          int64             `json:"user_id" db:"user_id"`
	BookID          int64             `json:"book_id" db:"book_id"`
	ReservationDate time.Time         `json:"reservation_date" db:"reservation_date"`
	Status          ReservationStatus `json:"status" db:"status"`
}

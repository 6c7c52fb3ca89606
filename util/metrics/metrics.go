package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoansBorrowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_loans_borrowed_total",
		Help: "Successful borrow operations.",
	})

	LoansReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_loans_returned_total",
		Help: "Successful return operations.",
	})

	BorrowRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liblend_borrow_rejected_total",
		Help: "Borrow attempts rejected, by error code.",
	}, []string{"code"})

	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_reservations_created_total",
		Help: "Reservations queued.",
	})

	ReservationsFulfilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_reservations_fulfilled_total",
		Help: "Reservations marked fulfilled when a copy freed up.",
	})

	FinesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_fines_collected_total",
		Help: "Fine amount settled from wallet balances.",
	})

	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liblend_inventory_invariant_violations_total",
		Help: "Copy releases that would exceed total_copies. Always a bug.",
	})
)

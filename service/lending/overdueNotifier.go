package lendingsvc

import (
	"context"
	"log/slog"
	"time"

	"liblend/model"
	loanrepo "liblend/repository/loan"
)

// Events receives overdue notices for open loans past due.
type Events interface {
	LoanOverdue(ctx context.Context, loan model.Loan, overdueDays int64, accruedFine float64) error
}

// Notifier periodically sweeps open loans and publishes an overdue notice
// for each one past due. Overdue itself is never stored; the sweep only
// notifies.
type Notifier struct {
	loans    loanrepo.Repo
	events   Events
	interval time.Duration
	log      *slog.Logger
}

func NewNotifier(loans loanrepo.Repo, events Events, interval time.Duration, log *slog.Logger) *Notifier {
	return &Notifier{loans: loans, events: events, interval: interval, log: log}
}

// Run blocks until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.sweep(ctx, time.Now().UTC())
		}
	}
}

func (n *Notifier) sweep(ctx context.Context, now time.Time) {
	loans, err := n.loans.ListOpenOverdue(ctx, now)
	if err != nil {
		n.log.Error("overdue sweep failed", "err", err)
		return
	}
	if len(loans) == 0 {
		return
	}

	for _, l := range loans {
		if err := n.events.LoanOverdue(ctx, l, l.OverdueDays(now), l.AccruedFine(now)); err != nil {
			n.log.Warn("overdue notice failed", "loan_id", l.ID, "err", err)
		}
	}
	n.log.Info("overdue sweep done", "count", len(loans))
}

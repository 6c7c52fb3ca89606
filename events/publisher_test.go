package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"liblend/model"
)

func TestIsHealthy_NoConnection(t *testing.T) {
	p := &Publisher{}
	require.False(t, p.IsHealthy())
}

func TestNop_DropsSilently(t *testing.T) {
	var n Nop
	require.NoError(t, n.ReservationFulfilled(context.Background(), model.Reservation{}))
	require.NoError(t, n.LoanOverdue(context.Background(), model.Loan{}, 6, 30))
}

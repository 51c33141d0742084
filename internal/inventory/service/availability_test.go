package service

import (
	"testing"
	"time"

	"hulu/pkg/model"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func held(qty, from, to int) *model.Reservation {
	return &model.Reservation{Quantity: qty, CheckIn: day(from), CheckOut: day(to), State: model.ReservationHeld}
}

func TestPeakOccupancy(t *testing.T) {
	tests := []struct {
		name     string
		ledger   []*model.Reservation
		from, to int
		want     int
	}{
		{"empty ledger", nil, 1, 5, 0},
		{"single reservation", []*model.Reservation{held(2, 1, 3)}, 1, 5, 2},
		{"disjoint stays do not add up", []*model.Reservation{held(2, 1, 3), held(3, 3, 5)}, 1, 5, 3},
		{"overlapping stays add up", []*model.Reservation{held(2, 1, 4), held(3, 3, 5)}, 1, 5, 5},
		{"outside the window is ignored", []*model.Reservation{held(4, 10, 12)}, 1, 5, 0},
		{"partially inside the window", []*model.Reservation{held(4, 4, 12), held(1, 1, 2)}, 1, 5, 4},
		{
			"terminal reservations are ignored",
			[]*model.Reservation{
				{Quantity: 5, CheckIn: day(1), CheckOut: day(3), State: model.ReservationCancelled},
				{Quantity: 5, CheckIn: day(1), CheckOut: day(3), State: model.ReservationReleased},
				held(1, 1, 3),
			},
			1, 5, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeakOccupancy(tt.ledger, day(tt.from), day(tt.to)))
		})
	}
}

func TestAvailable(t *testing.T) {
	ledger := []*model.Reservation{held(3, 1, 3)}

	assert.Equal(t, 2, Available(5, ledger, day(1), day(3)))
	assert.Equal(t, 5, Available(5, ledger, day(3), day(5)), "checkout night is free again")
	assert.Equal(t, 0, Available(2, ledger, day(1), day(3)), "oversold clamps to zero")
}

package service

import (
	"context"
	"sort"
	"time"

	"hulu/pkg/model"
)

type occupancyEvent struct {
	at    time.Time
	delta int
}

// PeakOccupancy returns the largest number of rooms held at any instant of
// [from, to). Only Held reservations count. A reservation checking out at the
// instant another checks in does not overlap it.
func PeakOccupancy(reservations []*model.Reservation, from, to time.Time) int {
	events := make([]occupancyEvent, 0, 2*len(reservations))
	for _, r := range reservations {
		if r.State != model.ReservationHeld || !r.Overlaps(from, to) {
			continue
		}
		start, end := r.CheckIn, r.CheckOut
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		events = append(events,
			occupancyEvent{at: start, delta: r.Quantity},
			occupancyEvent{at: end, delta: -r.Quantity},
		)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	peak, current := 0, 0
	for _, e := range events {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// Available is the number of rooms free on every night of [from, to). It is never
// negative, even for an oversold room type.
func Available(total int, reservations []*model.Reservation, from, to time.Time) int {
	return max(0, total-PeakOccupancy(reservations, from, to))
}

// HeldReader is the part of the ledger FuturePeak needs.
type HeldReader interface {
	FindHeldOverlapping(ctx context.Context, roomTypeID string, from, to time.Time) ([]*model.Reservation, error)
}

// FuturePeak is the most rooms of a room type Held on any night from the day of now
// onward. A room type is oversold while it exceeds the room count.
func FuturePeak(ctx context.Context, ledger HeldReader, roomTypeID string, now time.Time) (int, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	held, err := ledger.FindHeldOverlapping(ctx, roomTypeID, today, endOfTime)
	if err != nil {
		return 0, err
	}
	return PeakOccupancy(held, today, endOfTime), nil
}

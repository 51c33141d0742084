// Package testutil provides in-memory stand-ins for the Mongo repositories. A Store
// runs transactions one at a time and rolls every collection back when the
// transaction function fails, which mirrors the isolation the services rely on.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bookingserrors "hulu/internal/bookings/errors"
	inventoryerrors "hulu/internal/inventory/errors"
	reservationerrors "hulu/internal/reservations/errors"
	mongotx "hulu/pkg/db/mongo"
	"hulu/pkg/model"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	roomTypes    map[string]*model.RoomType
	reservations map[string]*model.Reservation
	tasks        map[string]*model.ReleaseTask
	bookings     map[string]*model.Booking
	nextID       int

	// InsertFaults are returned, one per call, by the next reservation inserts. A nil
	// entry lets that insert through.
	InsertFaults []error
}

func NewStore() *Store {
	return &Store{
		roomTypes:    make(map[string]*model.RoomType),
		reservations: make(map[string]*model.Reservation),
		tasks:        make(map[string]*model.ReleaseTask),
		bookings:     make(map[string]*model.Booking),
	}
}

type snapshot struct {
	roomTypes    map[string]model.RoomType
	reservations map[string]model.Reservation
	tasks        map[string]model.ReleaseTask
	bookings     map[string]model.Booking
}

func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		roomTypes:    make(map[string]model.RoomType, len(s.roomTypes)),
		reservations: make(map[string]model.Reservation, len(s.reservations)),
		tasks:        make(map[string]model.ReleaseTask, len(s.tasks)),
		bookings:     make(map[string]model.Booking, len(s.bookings)),
	}
	for k, v := range s.roomTypes {
		snap.roomTypes[k] = *v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = *v
	}
	for k, v := range s.tasks {
		snap.tasks[k] = *v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = *v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomTypes = make(map[string]*model.RoomType, len(snap.roomTypes))
	for k, v := range snap.roomTypes {
		v := v
		s.roomTypes[k] = &v
	}
	s.reservations = make(map[string]*model.Reservation, len(snap.reservations))
	for k, v := range snap.reservations {
		v := v
		s.reservations[k] = &v
	}
	s.tasks = make(map[string]*model.ReleaseTask, len(snap.tasks))
	for k, v := range snap.tasks {
		v := v
		s.tasks[k] = &v
	}
	s.bookings = make(map[string]*model.Booking, len(snap.bookings))
	for k, v := range snap.bookings {
		v := v
		s.bookings[k] = &v
	}
}

// AddRoomType stores a room type directly and returns its generated id.
func (s *Store) AddRoomType(hotelID string, total int, price float64) string {
	rt := &model.RoomType{
		HotelID:        hotelID,
		Name:           "Standard Room",
		Capacity:       2,
		PricePerNight:  price,
		TotalRoomCount: total,
	}
	_ = (&RoomTypes{Store: s}).Create(context.Background(), rt)
	return rt.ID
}

// HeldQuantity sums Held quantities of a room type overlapping [from, to).
func (s *Store) HeldQuantity(roomTypeID string, from, to time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, r := range s.reservations {
		if r.RoomTypeID == roomTypeID && r.State == model.ReservationHeld && r.Overlaps(from, to) {
			total += r.Quantity
		}
	}
	return total
}

func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

func (s *Store) Task(id string) (model.ReleaseTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.ReleaseTask{}, false
	}
	return *t, true
}

// ────────────────────────────────────────────────
// Room types
// ────────────────────────────────────────────────

type RoomTypes struct{ *Store }

func (r *RoomTypes) Create(_ context.Context, rt *model.RoomType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rt.ID = fmt.Sprintf("%024x", r.nextID)
	cp := *rt
	r.roomTypes[rt.ID] = &cp
	return nil
}

func (r *RoomTypes) FindByID(_ context.Context, id string) (*model.RoomType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.roomTypes[id]
	if !ok {
		return nil, inventoryerrors.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *RoomTypes) FindByHotel(_ context.Context, hotelID string, limit int, offset int64) ([]*model.RoomType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.RoomType, 0)
	for _, rt := range r.roomTypes {
		if rt.HotelID == hotelID {
			cp := *rt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r *RoomTypes) CountByHotel(ctx context.Context, hotelID string) (int64, error) {
	all, _ := r.FindByHotel(ctx, hotelID, 0, 0)
	return int64(len(all)), nil
}

func (r *RoomTypes) Update(_ context.Context, id string, rt *model.RoomType) error {
	return r.modify(id, func(existing *model.RoomType) {
		existing.Name = rt.Name
		existing.Capacity = rt.Capacity
		existing.PricePerNight = rt.PricePerNight
		existing.Amenities = rt.Amenities
		existing.ImageURL = rt.ImageURL
		existing.CancellationPolicy = rt.CancellationPolicy
	})
}

func (r *RoomTypes) SetTotalRoomCount(_ context.Context, id string, total int, oversold bool) error {
	return r.modify(id, func(existing *model.RoomType) {
		existing.TotalRoomCount = total
		existing.Oversold = oversold
		existing.Version++
	})
}

func (r *RoomTypes) BumpVersion(_ context.Context, id string) error {
	return r.modify(id, func(existing *model.RoomType) { existing.Version++ })
}

func (r *RoomTypes) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roomTypes[id]; !ok {
		return inventoryerrors.ErrNotFound
	}
	delete(r.roomTypes, id)
	return nil
}

func (r *RoomTypes) modify(id string, fn func(*model.RoomType)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.roomTypes[id]
	if !ok {
		return inventoryerrors.ErrNotFound
	}
	fn(rt)
	return nil
}

// ────────────────────────────────────────────────
// Reservations
// ────────────────────────────────────────────────

type Reservations struct{ *Store }

func (r *Reservations) Insert(_ context.Context, reservation *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.InsertFaults) > 0 {
		err := r.InsertFaults[0]
		r.InsertFaults = r.InsertFaults[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := r.reservations[reservation.ID]; ok {
		return reservationerrors.ErrAlreadyExists
	}
	reservation.CreatedAt = time.Now().UTC()
	reservation.UpdatedAt = reservation.CreatedAt
	cp := *reservation
	r.reservations[reservation.ID] = &cp
	return nil
}

func (r *Reservations) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *Reservations) Transition(_ context.Context, id string, from, to model.ReservationState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.State != from {
		return false, nil
	}
	res.State = to
	res.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Reservations) FindHeldOverlapping(_ context.Context, roomTypeID string, from, to time.Time) ([]*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, res := range r.reservations {
		if res.RoomTypeID == roomTypeID && res.State == model.ReservationHeld && res.Overlaps(from, to) {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Reservations) CountHeld(_ context.Context, roomTypeID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.RoomTypeID == roomTypeID && res.State == model.ReservationHeld {
			n++
		}
	}
	return n, nil
}

// ────────────────────────────────────────────────
// Release tasks
// ────────────────────────────────────────────────

type ReleaseTasks struct{ *Store }

func (r *ReleaseTasks) Insert(_ context.Context, task *model.ReleaseTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; ok {
		return reservationerrors.ErrAlreadyExists
	}
	task.CreatedAt = time.Now().UTC()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *ReleaseTasks) FindDue(_ context.Context, now time.Time, limit int) ([]*model.ReleaseTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ReleaseTask, 0)
	for _, t := range r.tasks {
		if !t.Executed && !t.DueAt.After(now) && (t.NextAttemptAt == nil || !t.NextAttemptAt.After(now)) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReleaseTasks) MarkExecuted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Executed {
		return nil
	}
	t.Executed = true
	t.ExecutedAt = &at
	return nil
}

func (r *ReleaseTasks) MarkFailed(_ context.Context, id string, nextAttemptAt time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Executed {
		return nil
	}
	t.Attempts++
	t.NextAttemptAt = &nextAttemptAt
	t.LastError = reason
	return nil
}

// ────────────────────────────────────────────────
// Bookings
// ────────────────────────────────────────────────

type Bookings struct{ *Store }

func (r *Bookings) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[booking.TicketNumber]; ok {
		return bookingserrors.ErrAlreadyExists
	}
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	r.bookings[booking.TicketNumber] = &cp
	return nil
}

func (r *Bookings) FindByID(_ context.Context, ticketNumber string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[ticketNumber]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *Bookings) UpdateStatus(_ context.Context, ticketNumber string, from, to model.BookingStatus, failReason string) (bool, error) {
	return r.updateWhere(ticketNumber, func(b *model.Booking) bool {
		if b.Status != from {
			return false
		}
		b.Status = to
		b.FailReason = failReason
		return true
	})
}

func (r *Bookings) Confirm(_ context.Context, ticketNumber string, attempt int) (bool, error) {
	return r.updateWhere(ticketNumber, func(b *model.Booking) bool {
		if b.Status != model.BookingPending || b.Attempt != attempt {
			return false
		}
		b.Status = model.BookingConfirmed
		b.FailReason = ""
		return true
	})
}

func (r *Bookings) NextAttempt(_ context.Context, ticketNumber string, attempt int) (bool, error) {
	return r.updateWhere(ticketNumber, func(b *model.Booking) bool {
		if b.Status != model.BookingPending || b.Attempt != attempt {
			return false
		}
		b.Attempt++
		return true
	})
}

func (r *Bookings) updateWhere(ticketNumber string, apply func(*model.Booking) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[ticketNumber]
	if !ok || !apply(b) {
		return false, nil
	}
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Bookings) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return page(r.filterBookings(func(b *model.Booking) bool { return b.UserID == userID }), limit, offset), nil
}

func (r *Bookings) CountByUser(_ context.Context, userID string) (int64, error) {
	return int64(len(r.filterBookings(func(b *model.Booking) bool { return b.UserID == userID }))), nil
}

func (r *Bookings) FindArrivals(_ context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return r.filterBookings(func(b *model.Booking) bool {
		return b.HotelID == hotelID && b.Status == model.BookingConfirmed && sameDay(b.CheckIn, day)
	}), nil
}

func (r *Bookings) FindDepartures(_ context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return r.filterBookings(func(b *model.Booking) bool {
		return b.HotelID == hotelID && b.Status == model.BookingConfirmed && sameDay(b.CheckOut, day)
	}), nil
}

func (r *Bookings) filterBookings(keep func(*model.Booking) bool) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Booking, 0)
	for _, b := range r.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func page[T any](items []T, limit int, offset int64) []T {
	if offset >= int64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

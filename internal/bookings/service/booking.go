package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bookingserrors "hulu/internal/bookings/errors"
	"hulu/internal/bookings/repository"
	"hulu/internal/bookings/validator"
	"hulu/internal/events"
	reservationservice "hulu/internal/reservations/service"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/metrics"
	"hulu/pkg/model"
	"hulu/pkg/sanitizer"

	"github.com/google/uuid"
)

const (
	ticketPrefix = "HULU-"
	// A booking changes status at most twice, pending to confirmed to cancelled.
	maxCancelRounds = 3
)

// RoomTypeReader resolves the room types a booking refers to.
type RoomTypeReader interface {
	GetByID(ctx context.Context, id string) (*model.RoomType, error)
}

type BookingService interface {
	// ConfirmBooking reserves every room line of the draft or none of them.
	ConfirmBooking(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error)
	// CancelBooking cancels every reservation of the booking. An empty userID skips
	// the ownership check.
	CancelBooking(ctx context.Context, ticketNumber, userID string) (*model.Booking, error)
	GetBooking(ctx context.Context, ticketNumber, userID string) (*model.Booking, error)
	ListMyBookings(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListArrivals(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error)
	ListDepartures(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	reservations reservationservice.ReservationService
	roomTypes    RoomTypeReader
	publisher    events.Publisher
	validator    *validator.BookingValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	reservations reservationservice.ReservationService,
	roomTypes RoomTypeReader,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		reservations: reservations,
		roomTypes:    roomTypes,
		publisher:    publisher,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *bookingService) ConfirmBooking(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error) {
	if err := s.sanitize(draft); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(draft, s.today()); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "hotel_id", draft.HotelID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	if draft.TicketNumber != "" {
		existing, err := s.repo.FindByID(ctx, draft.TicketNumber)
		if err == nil {
			return s.resume(ctx, existing, draft.UserID)
		}
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, s.translateError(draft.TicketNumber, "Failed to retrieve booking", err)
		}
	} else {
		draft.TicketNumber = NewTicketNumber(s.now())
	}

	totalCost, err := s.price(ctx, draft)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		TicketNumber: draft.TicketNumber,
		UserID:       draft.UserID,
		HotelID:      draft.HotelID,
		Guest:        draft.Guest,
		AdultCount:   draft.AdultCount,
		ChildCount:   draft.ChildCount,
		CheckIn:      draft.CheckIn,
		CheckOut:     draft.CheckOut,
		Rooms:        draft.Rooms,
		TotalCost:    totalCost,
		Status:       model.BookingPending,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrAlreadyExists) {
			existing, findErr := s.repo.FindByID(ctx, booking.TicketNumber)
			if findErr != nil {
				return nil, s.translateError(booking.TicketNumber, "Failed to retrieve booking", findErr)
			}
			return s.resume(ctx, existing, draft.UserID)
		}
		s.cfg.Log.Error("Failed to create booking", "ticket_number", booking.TicketNumber, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	return s.reserveAll(ctx, booking)
}

// resume handles a ticket number that was submitted before. A confirmed booking is
// returned as is, a pending one is driven to completion since every reserve is
// idempotent, and a finished one cannot be confirmed again.
func (s *bookingService) resume(ctx context.Context, booking *model.Booking, userID string) (*model.Booking, error) {
	if booking.UserID != userID {
		return nil, apperrors.Conflict("Ticket number is already in use")
	}

	switch booking.Status {
	case model.BookingConfirmed:
		s.cfg.Log.Info("Booking confirmation replayed", "ticket_number", booking.TicketNumber)
		return booking, nil
	case model.BookingPending:
		s.cfg.Log.Info("Resuming pending booking", "ticket_number", booking.TicketNumber, "attempt", booking.Attempt)
		return s.reserveAll(ctx, booking)
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("Booking '%s' is already %s", booking.TicketNumber, booking.Status))
	}
}

func (s *bookingService) reserveAll(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	held := make([]string, 0, len(booking.Rooms))

	for _, room := range booking.Rooms {
		reservationID := model.ReservationID(booking.TicketNumber, room.RoomTypeID, booking.Attempt)
		reservation, err := s.reservations.Reserve(ctx, room.RoomTypeID, room.Quantity, booking.CheckIn, booking.CheckOut, reservationID)
		if err == nil && reservation.State != model.ReservationHeld {
			err = apperrors.Conflict(fmt.Sprintf("Reservation '%s' is already %s", reservationID, reservation.State))
		}
		if err != nil {
			return s.abandon(ctx, booking, held, room.RoomTypeID, err)
		}
		held = append(held, reservationID)
	}

	confirmed, err := s.repo.Confirm(ctx, booking.TicketNumber, booking.Attempt)
	if err != nil {
		return s.abandon(ctx, booking, held, "", s.translateError(booking.TicketNumber, "Failed to confirm booking", err))
	}
	if !confirmed {
		return s.superseded(ctx, booking, held)
	}
	booking.Status = model.BookingConfirmed
	booking.FailReason = ""

	metrics.ObserveBooking(string(model.BookingConfirmed))
	s.cfg.Log.Info("Booking confirmed",
		"ticket_number", booking.TicketNumber,
		"hotel_id", booking.HotelID,
		"rooms", len(booking.Rooms),
		"total_cost", booking.TotalCost,
	)
	s.publisher.Publish(ctx, events.Event{
		Type:    events.BookingConfirmed,
		Key:     booking.TicketNumber,
		Payload: booking,
	})
	return booking, nil
}

// abandon ends an attempt that could not hold every room. Contention and timeouts
// keep the booking pending under the next attempt so the same ticket can be
// submitted again; anything else fails the booking. The rooms this attempt held are
// given back unless a concurrent submission of the same attempt confirmed them.
func (s *bookingService) abandon(ctx context.Context, booking *model.Booking, held []string, roomTypeID string, cause error) (*model.Booking, error) {
	ctx = context.WithoutCancel(ctx)
	reason := apperrors.AsAppError(cause).Message
	retryable := apperrors.HasCode(cause, apperrors.CodeConflict) || apperrors.HasCode(cause, apperrors.CodeTimeout)

	var (
		moved bool
		err   error
	)
	if retryable {
		moved, err = s.repo.NextAttempt(ctx, booking.TicketNumber, booking.Attempt)
	} else {
		moved, err = s.repo.UpdateStatus(ctx, booking.TicketNumber, model.BookingPending, model.BookingFailed, reason)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to record booking attempt", "ticket_number", booking.TicketNumber, "error", err)
	}
	if err == nil && !moved {
		if current, ok := s.confirmedElsewhere(ctx, booking); ok {
			return current, nil
		}
	}

	s.compensate(ctx, booking, held)

	status := model.BookingFailed
	if retryable {
		status = model.BookingPending
	}
	metrics.ObserveBooking(string(status))
	s.cfg.Log.Warn("Booking attempt abandoned",
		"ticket_number", booking.TicketNumber,
		"room_type_id", roomTypeID,
		"attempt", booking.Attempt,
		"status", status,
		"reason", reason,
	)
	return nil, cause
}

// superseded handles a confirmation that lost to a concurrent cancel, failure or
// newer attempt.
func (s *bookingService) superseded(ctx context.Context, booking *model.Booking, held []string) (*model.Booking, error) {
	if current, ok := s.confirmedElsewhere(ctx, booking); ok {
		return current, nil
	}
	s.compensate(ctx, booking, held)

	current, err := s.repo.FindByID(context.WithoutCancel(ctx), booking.TicketNumber)
	if err != nil {
		return nil, s.translateError(booking.TicketNumber, "Failed to retrieve booking", err)
	}
	s.cfg.Log.Warn("Booking changed while reserving",
		"ticket_number", booking.TicketNumber,
		"attempt", booking.Attempt,
		"status", current.Status,
	)
	if current.Status == model.BookingPending {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking '%s' is being retried", booking.TicketNumber))
	}
	return nil, apperrors.Conflict(fmt.Sprintf("Booking '%s' is already %s", booking.TicketNumber, current.Status))
}

// confirmedElsewhere reports whether another submission confirmed the booking with
// the reservations of the same attempt.
func (s *bookingService) confirmedElsewhere(ctx context.Context, booking *model.Booking) (*model.Booking, bool) {
	current, err := s.repo.FindByID(ctx, booking.TicketNumber)
	if err != nil {
		return nil, false
	}
	if current.Status != model.BookingConfirmed || current.Attempt != booking.Attempt {
		return nil, false
	}
	return current, true
}

// compensate cancels reservations made for a booking that could not be completed,
// newest first. A cancel that fails here leaves the hold to the release sweeper.
func (s *bookingService) compensate(ctx context.Context, booking *model.Booking, reservationIDs []string) {
	ctx = context.WithoutCancel(ctx)
	for i := len(reservationIDs) - 1; i >= 0; i-- {
		if _, err := s.reservations.Cancel(ctx, reservationIDs[i]); err != nil {
			s.cfg.Log.Error("Failed to roll back reservation",
				"ticket_number", booking.TicketNumber,
				"reservation_id", reservationIDs[i],
				"error", err,
			)
		}
	}
}

// CancelBooking first moves the booking to cancelled, so a confirmation racing with
// it loses and gives its rooms back, then cancels the reservations of every attempt.
// Cancelling a cancelled booking retries the reservation cancels without a new event.
func (s *bookingService) CancelBooking(ctx context.Context, ticketNumber, userID string) (*model.Booking, error) {
	for round := 0; round < maxCancelRounds; round++ {
		booking, err := s.GetBooking(ctx, ticketNumber, userID)
		if err != nil {
			return nil, err
		}

		switch booking.Status {
		case model.BookingFailed:
			return booking, nil
		case model.BookingCancelled:
			if err := s.cancelReservations(ctx, booking); err != nil {
				return nil, err
			}
			return booking, nil
		}
		if !booking.CheckOut.After(s.today()) {
			return nil, apperrors.Conflict("Stay has already ended and cannot be cancelled")
		}

		applied, err := s.repo.UpdateStatus(ctx, booking.TicketNumber, booking.Status, model.BookingCancelled, "")
		if err != nil {
			return nil, s.translateError(booking.TicketNumber, "Failed to cancel booking", err)
		}
		if !applied {
			s.cfg.Log.Debug("Booking changed while cancelling, retrying", "ticket_number", booking.TicketNumber, "status", booking.Status)
			continue
		}

		// The attempt only moves while pending, so it is final from here on.
		cancelled, err := s.repo.FindByID(ctx, booking.TicketNumber)
		if err != nil {
			return nil, s.translateError(booking.TicketNumber, "Failed to retrieve booking", err)
		}
		if err := s.cancelReservations(ctx, cancelled); err != nil {
			return nil, err
		}

		metrics.ObserveBooking(string(model.BookingCancelled))
		s.cfg.Log.Info("Booking cancelled", "ticket_number", cancelled.TicketNumber, "hotel_id", cancelled.HotelID)
		s.publisher.Publish(ctx, events.Event{
			Type:    events.BookingCancelled,
			Key:     cancelled.TicketNumber,
			Payload: cancelled,
		})
		return cancelled, nil
	}
	return nil, apperrors.Conflict(fmt.Sprintf("Booking '%s' kept changing, please retry", ticketNumber))
}

func (s *bookingService) cancelReservations(ctx context.Context, booking *model.Booking) error {
	for attempt := 0; attempt <= booking.Attempt; attempt++ {
		for _, room := range booking.Rooms {
			reservationID := model.ReservationID(booking.TicketNumber, room.RoomTypeID, attempt)
			if _, err := s.reservations.Cancel(ctx, reservationID); err != nil {
				if apperrors.HasCode(err, apperrors.CodeNotFound) {
					continue
				}
				s.cfg.Log.Error("Failed to cancel reservation",
					"ticket_number", booking.TicketNumber,
					"reservation_id", reservationID,
					"error", err,
				)
				return err
			}
		}
	}
	return nil
}

// GetBooking hides bookings of other users behind NotFound.
func (s *bookingService) GetBooking(ctx context.Context, ticketNumber, userID string) (*model.Booking, error) {
	ticketNumber = strings.TrimSpace(ticketNumber)
	if ticketNumber == "" {
		return nil, apperrors.InvalidInput("Ticket number cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, ticketNumber)
	if err != nil {
		return nil, s.translateError(ticketNumber, "Failed to retrieve booking", err)
	}
	if userID != "" && booking.UserID != userID {
		return nil, apperrors.NotFoundWithID("Booking", ticketNumber)
	}
	return booking, nil
}

func (s *bookingService) ListMyBookings(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}
	return bookings, count, nil
}

func (s *bookingService) ListArrivals(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return s.listOnDay(ctx, hotelID, day, s.repo.FindArrivals)
}

func (s *bookingService) ListDepartures(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return s.listOnDay(ctx, hotelID, day, s.repo.FindDepartures)
}

func (s *bookingService) listOnDay(
	ctx context.Context,
	hotelID string,
	day time.Time,
	find func(context.Context, string, time.Time) ([]*model.Booking, error),
) ([]*model.Booking, error) {
	hotelID = strings.TrimSpace(hotelID)
	if hotelID == "" {
		return nil, apperrors.InvalidInput("Hotel ID cannot be empty")
	}
	if day.IsZero() {
		return nil, apperrors.InvalidInput("date is required")
	}

	bookings, err := find(ctx, hotelID, truncateDay(day))
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings for day", "hotel_id", hotelID, "date", day, "error", err)
		return nil, apperrors.Internal("Failed to list bookings", err)
	}
	return bookings, nil
}

// price checks that every room type belongs to the booked hotel and returns the
// cost of the whole stay.
func (s *bookingService) price(ctx context.Context, draft *model.BookingDraft) (float64, error) {
	nights := float64(model.Nights(draft.CheckIn, draft.CheckOut))
	total := 0.0
	for _, room := range draft.Rooms {
		rt, err := s.roomTypes.GetByID(ctx, room.RoomTypeID)
		if err != nil {
			return 0, err
		}
		if rt.HotelID != draft.HotelID {
			return 0, apperrors.InvalidInput(fmt.Sprintf("Room type '%s' does not belong to hotel '%s'", room.RoomTypeID, draft.HotelID))
		}
		total += rt.PricePerNight * float64(room.Quantity) * nights
	}
	return total, nil
}

func (s *bookingService) sanitize(draft *model.BookingDraft) error {
	draft.TicketNumber = strings.TrimSpace(draft.TicketNumber)
	draft.HotelID = sanitizer.TrimAndNormalize(draft.HotelID)
	draft.Guest.FirstName = sanitizer.NormalizeName(draft.Guest.FirstName)
	draft.Guest.LastName = sanitizer.NormalizeName(draft.Guest.LastName)
	draft.Guest.Email = sanitizer.NormalizeEmail(draft.Guest.Email)

	if raw := strings.TrimSpace(draft.Guest.Phone); raw != "" {
		draft.Guest.Phone = sanitizer.NormalizePhone(raw)
		if draft.Guest.Phone == "" {
			return apperrors.Validation("Booking validation failed", map[string]any{
				"error": fmt.Sprintf("Phone: '%s' is not a valid phone number", raw),
			})
		}
	}

	draft.CheckIn = truncateDay(draft.CheckIn)
	draft.CheckOut = truncateDay(draft.CheckOut)
	draft.Rooms = MergeRooms(draft.Rooms)
	return nil
}

func (s *bookingService) today() time.Time {
	return truncateDay(s.now())
}

func (s *bookingService) translateError(ticketNumber, message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", ticketNumber)
	}
	s.cfg.Log.Error(message, "ticket_number", ticketNumber, "error", err)
	return apperrors.Internal(message, err)
}

// MergeRooms sums duplicate room type lines and orders them by room type id, so
// concurrent bookings reserve room types in the same order.
func MergeRooms(rooms []model.BookingRoom) []model.BookingRoom {
	byType := make(map[string]int, len(rooms))
	for _, room := range rooms {
		id := strings.TrimSpace(room.RoomTypeID)
		byType[id] += room.Quantity
	}

	merged := make([]model.BookingRoom, 0, len(byType))
	for id, qty := range byType {
		merged = append(merged, model.BookingRoom{RoomTypeID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].RoomTypeID < merged[j].RoomTypeID })
	return merged
}

// NewTicketNumber returns HULU- followed by the low 32 bits of the millisecond
// timestamp and eight characters of a random UUID, all upper-case hex.
func NewTicketNumber(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%08X%s", ticketPrefix, uint32(now.UnixMilli()), strings.ToUpper(random))
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hulu/internal/events"
	inventoryerrors "hulu/internal/inventory/errors"
	inventoryrepo "hulu/internal/inventory/repository"
	inventoryservice "hulu/internal/inventory/service"
	reservationerrors "hulu/internal/reservations/errors"
	"hulu/internal/reservations/repository"
	"hulu/pkg/config"
	mongotx "hulu/pkg/db/mongo"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/metrics"
	"hulu/pkg/model"

	"github.com/cenkalti/backoff/v4"
)

type ReservationService interface {
	// Reserve holds quantity rooms of a room type for [checkIn, checkOut). Reusing a
	// reservation id with the same parameters returns the stored reservation.
	Reserve(ctx context.Context, roomTypeID string, quantity int, checkIn, checkOut time.Time, reservationID string) (*model.Reservation, error)
	// Cancel moves a Held reservation to Cancelled. Terminal reservations are returned unchanged.
	Cancel(ctx context.Context, reservationID string) (*model.Reservation, error)
	// Release moves a Held reservation to Released and marks its release task executed.
	Release(ctx context.Context, reservationID string) (*model.Reservation, error)
	Get(ctx context.Context, reservationID string) (*model.Reservation, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	tasks     repository.ReleaseTaskRepository
	roomTypes inventoryrepo.RoomTypeRepository
	locker    inventoryservice.Locker
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	tasks repository.ReleaseTaskRepository,
	roomTypes inventoryrepo.RoomTypeRepository,
	locker inventoryservice.Locker,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		tasks:     tasks,
		roomTypes: roomTypes,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// errRetryable marks a commit failure caused by contention. The whole reservation is
// attempted again from the availability read.
type errRetryable struct{ err error }

func (e *errRetryable) Error() string { return e.err.Error() }
func (e *errRetryable) Unwrap() error { return e.err }

func (s *reservationService) Reserve(ctx context.Context, roomTypeID string, quantity int, checkIn, checkOut time.Time, reservationID string) (*model.Reservation, error) {
	if err := validateReserve(roomTypeID, quantity, checkIn, checkOut, reservationID); err != nil {
		return nil, err
	}
	checkIn, checkOut = checkIn.UTC(), checkOut.UTC()

	var (
		result   *model.Reservation
		replayed bool
		attempt  int
	)
	operation := func() error {
		attempt++
		if attempt > 1 {
			metrics.ObserveReserveRetry()
		}

		res, wasReplayed, err := s.reserveOnce(ctx, roomTypeID, quantity, checkIn, checkOut, reservationID)
		if err == nil {
			result, replayed = res, wasReplayed
			return nil
		}

		if mongotx.IsTransientConflict(err) || errors.Is(err, reservationerrors.ErrAlreadyExists) {
			s.cfg.Log.Debug("Reservation commit contended, retrying",
				"reservation_id", reservationID,
				"attempt", attempt,
				"error", err,
			)
			return &errRetryable{err: err}
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, newRetryPolicy(ctx, s.cfg.ReserveRetryBackoff, s.cfg.ReserveMaxAttempts))
	if err != nil {
		return nil, s.reserveFailed(reservationID, roomTypeID, quantity, err)
	}

	if replayed {
		metrics.ObserveReserve(metrics.OutcomeReplayed)
		s.cfg.Log.Info("Reservation replayed", "reservation_id", reservationID, "state", result.State)
		return result, nil
	}

	metrics.ObserveReserve(metrics.OutcomeHeld)
	s.cfg.Log.Info("Reservation held",
		"reservation_id", reservationID,
		"room_type_id", roomTypeID,
		"quantity", quantity,
		"check_in", checkIn,
		"check_out", checkOut,
	)
	return result, nil
}

func (s *reservationService) reserveOnce(ctx context.Context, roomTypeID string, quantity int, checkIn, checkOut time.Time, reservationID string) (*model.Reservation, bool, error) {
	unlock, err := s.locker.Lock(ctx, roomTypeID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		result   *model.Reservation
		replayed bool
	)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, reservationID)
		if err == nil {
			if !sameRequest(existing, roomTypeID, quantity, checkIn, checkOut) {
				return apperrors.InvalidInput(fmt.Sprintf("Reservation '%s' already exists with different parameters", reservationID))
			}
			result, replayed = existing, true
			return nil
		}
		if !errors.Is(err, reservationerrors.ErrNotFound) {
			return err
		}

		roomType, err := s.roomTypes.FindByID(txCtx, roomTypeID)
		if err != nil {
			return translateRoomTypeError(roomTypeID, err)
		}

		held, err := s.repo.FindHeldOverlapping(txCtx, roomTypeID, checkIn, checkOut)
		if err != nil {
			return err
		}

		available := inventoryservice.Available(roomType.TotalRoomCount, held, checkIn, checkOut)
		if quantity > available {
			return apperrors.InsufficientInventory(quantity, available)
		}

		reservation := &model.Reservation{
			ID:         reservationID,
			RoomTypeID: roomTypeID,
			Quantity:   quantity,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			State:      model.ReservationHeld,
		}
		if err := s.repo.Insert(txCtx, reservation); err != nil {
			return err
		}

		task := &model.ReleaseTask{
			ID:            reservationID,
			ReservationID: reservationID,
			RoomTypeID:    roomTypeID,
			DueAt:         checkOut,
		}
		if err := s.tasks.Insert(txCtx, task); err != nil {
			return err
		}

		if err := s.roomTypes.BumpVersion(txCtx, roomTypeID); err != nil {
			return translateRoomTypeError(roomTypeID, err)
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, replayed, nil
}

func (s *reservationService) reserveFailed(reservationID, roomTypeID string, quantity int, err error) error {
	var retryable *errRetryable
	switch {
	case errors.As(err, &retryable):
		metrics.ObserveReserve(metrics.OutcomeConflict)
		s.cfg.Log.Warn("Reservation abandoned after repeated contention",
			"reservation_id", reservationID,
			"room_type_id", roomTypeID,
			"error", retryable.err,
		)
		return apperrors.Conflict("Reservation could not be committed due to concurrent updates, please retry")
	case apperrors.HasCode(err, apperrors.CodeInsufficientInventory):
		metrics.ObserveReserve(metrics.OutcomeInsufficient)
		s.cfg.Log.Warn("Insufficient inventory",
			"reservation_id", reservationID,
			"room_type_id", roomTypeID,
			"quantity", quantity,
		)
		return err
	case apperrors.HasCode(err, apperrors.CodeConflict):
		metrics.ObserveReserve(metrics.OutcomeConflict)
		return err
	case apperrors.IsAppError(err):
		metrics.ObserveReserve(metrics.OutcomeError)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.ObserveReserve(metrics.OutcomeError)
		return apperrors.Timeout("Reservation timed out")
	default:
		metrics.ObserveReserve(metrics.OutcomeError)
		s.cfg.Log.Error("Failed to reserve rooms",
			"reservation_id", reservationID,
			"room_type_id", roomTypeID,
			"error", err,
		)
		return apperrors.Internal("Failed to reserve rooms", err)
	}
}

func (s *reservationService) Cancel(ctx context.Context, reservationID string) (*model.Reservation, error) {
	return s.finalize(ctx, reservationID, model.ReservationCancelled)
}

func (s *reservationService) Release(ctx context.Context, reservationID string) (*model.Reservation, error) {
	return s.finalize(ctx, reservationID, model.ReservationReleased)
}

// finalize applies the Held -> target compare-and-set and marks the release task
// executed in the same transaction. Whichever of cancel and release commits first wins.
func (s *reservationService) finalize(ctx context.Context, reservationID string, target model.ReservationState) (*model.Reservation, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	var (
		result      *model.Reservation
		transitions bool
	)
	operation := func() error {
		err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			reservation, err := s.repo.FindByID(txCtx, reservationID)
			if err != nil {
				if errors.Is(err, reservationerrors.ErrNotFound) {
					return apperrors.NotFoundWithID("Reservation", reservationID)
				}
				return err
			}
			result, transitions = reservation, false
			if !reservation.State.Terminal() {
				moved, err := s.repo.Transition(txCtx, reservationID, model.ReservationHeld, target)
				if err != nil {
					return err
				}
				if moved {
					reservation.State = target
					transitions = true
				} else if result, err = s.repo.FindByID(txCtx, reservationID); err != nil {
					return err
				}
			}

			// A terminal reservation never needs its release task again.
			return s.tasks.MarkExecuted(txCtx, reservationID, s.now())
		})
		if err != nil && mongotx.IsTransientConflict(err) {
			return &errRetryable{err: err}
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(operation, newRetryPolicy(ctx, s.cfg.ReserveRetryBackoff, s.cfg.ReserveMaxAttempts)); err != nil {
		var retryable *errRetryable
		if errors.As(err, &retryable) {
			return nil, apperrors.Conflict("Reservation could not be updated due to concurrent updates, please retry")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to finalize reservation", "reservation_id", reservationID, "target_state", target, "error", err)
		return nil, apperrors.Internal("Failed to update reservation", err)
	}

	if !transitions {
		s.cfg.Log.Debug("Reservation already finalized", "reservation_id", reservationID, "state", result.State)
		return result, nil
	}

	metrics.ObserveTransition(string(target))
	s.cfg.Log.Info("Reservation finalized",
		"reservation_id", reservationID,
		"room_type_id", result.RoomTypeID,
		"state", target,
	)
	s.reconcileOversold(ctx, result.RoomTypeID)

	if target == model.ReservationReleased {
		s.publisher.Publish(ctx, events.Event{
			Type: events.ReservationReleased,
			Key:  reservationID,
			Payload: map[string]any{
				"reservation_id": reservationID,
				"room_type_id":   result.RoomTypeID,
				"quantity":       result.Quantity,
				"check_in":       result.CheckIn,
				"check_out":      result.CheckOut,
			},
		})
	}
	return result, nil
}

// reconcileOversold clears the oversold flag of a room type once its Held rooms fit
// its room count again. It runs under the room type lock, like a room count change,
// and leaves the flag for the next finalize when it cannot complete.
func (s *reservationService) reconcileOversold(ctx context.Context, roomTypeID string) {
	ctx = context.WithoutCancel(ctx)
	roomType, err := s.roomTypes.FindByID(ctx, roomTypeID)
	if err != nil || !roomType.Oversold {
		return
	}

	unlock, err := s.locker.Lock(ctx, roomTypeID)
	if err != nil {
		s.cfg.Log.Warn("Skipped oversold check", "room_type_id", roomTypeID, "error", err)
		return
	}
	defer unlock()

	var (
		cleared bool
		peak    int
		total   int
	)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		cleared = false
		current, err := s.roomTypes.FindByID(txCtx, roomTypeID)
		if err != nil {
			return err
		}
		if !current.Oversold {
			return nil
		}
		total = current.TotalRoomCount
		if peak, err = inventoryservice.FuturePeak(txCtx, s.repo, roomTypeID, s.now()); err != nil {
			return err
		}
		if peak > total {
			return nil
		}
		if err := s.roomTypes.SetTotalRoomCount(txCtx, roomTypeID, total, false); err != nil {
			return err
		}
		cleared = true
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to re-check oversold room type", "room_type_id", roomTypeID, "error", err)
		return
	}
	if cleared {
		metrics.ObserveOversold(false)
		s.cfg.Log.Info("Room type no longer oversold", "room_type_id", roomTypeID, "total_room_count", total, "peak_held", peak)
	}
}

func (s *reservationService) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", reservationID)
		}
		s.cfg.Log.Error("Failed to retrieve reservation", "reservation_id", reservationID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func validateReserve(roomTypeID string, quantity int, checkIn, checkOut time.Time, reservationID string) error {
	switch {
	case reservationID == "":
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	case roomTypeID == "":
		return apperrors.InvalidInput("Room type ID cannot be empty")
	case quantity <= 0:
		return apperrors.InvalidInput(fmt.Sprintf("Quantity must be positive, got: %d", quantity))
	case checkIn.IsZero() || checkOut.IsZero():
		return apperrors.InvalidInput("check_in and check_out are required")
	case !checkIn.Before(checkOut):
		return apperrors.InvalidInput("check_in must be before check_out")
	}
	return nil
}

func sameRequest(r *model.Reservation, roomTypeID string, quantity int, checkIn, checkOut time.Time) bool {
	return r.RoomTypeID == roomTypeID &&
		r.Quantity == quantity &&
		r.CheckIn.Equal(checkIn) &&
		r.CheckOut.Equal(checkOut)
}

func translateRoomTypeError(roomTypeID string, err error) error {
	switch {
	case errors.Is(err, inventoryerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room type", roomTypeID)
	case errors.Is(err, inventoryerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid room type ID format")
	}
	return err
}

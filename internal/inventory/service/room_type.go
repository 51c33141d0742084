package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hulu/internal/events"
	inventoryerrors "hulu/internal/inventory/errors"
	"hulu/internal/inventory/repository"
	"hulu/internal/inventory/validator"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/metrics"
	"hulu/pkg/model"
	"hulu/pkg/sanitizer"
)

// Ledger reads Held reservations. It is implemented by the reservations repository.
type Ledger interface {
	FindHeldOverlapping(ctx context.Context, roomTypeID string, from, to time.Time) ([]*model.Reservation, error)
	CountHeld(ctx context.Context, roomTypeID string) (int64, error)
}

// Locker serialises writers of one room type's inventory.
type Locker interface {
	Lock(ctx context.Context, roomTypeID string) (unlock func(), err error)
}

var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type RoomTypeService interface {
	Create(ctx context.Context, roomType *model.RoomType) error
	GetByID(ctx context.Context, id string) (*model.RoomType, error)
	ListByHotel(ctx context.Context, hotelID string, checkIn, checkOut *time.Time, limit int, offset int64) ([]*model.RoomTypeAvailability, int64, error)
	Update(ctx context.Context, id string, updates *model.RoomTypeUpdate) (*model.RoomType, error)
	Delete(ctx context.Context, id string) error
	GetAvailable(ctx context.Context, id string, checkIn, checkOut time.Time) (int, error)
	SetTotalRoomCount(ctx context.Context, id string, newTotal int) (*model.RoomType, error)
}

type roomTypeService struct {
	repo      repository.RoomTypeRepository
	ledger    Ledger
	locker    Locker
	publisher events.Publisher
	validator *validator.RoomTypeValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewRoomTypeService(
	repo repository.RoomTypeRepository,
	ledger Ledger,
	locker Locker,
	publisher events.Publisher,
	validator *validator.RoomTypeValidator,
	cfg *config.Config,
) RoomTypeService {
	return &roomTypeService{
		repo:      repo,
		ledger:    ledger,
		locker:    locker,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *roomTypeService) Create(ctx context.Context, roomType *model.RoomType) error {
	s.sanitize(roomType)
	roomType.ID = ""
	roomType.Oversold = false
	roomType.Version = 0

	if err := s.validate(roomType); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, roomType); err != nil {
		s.cfg.Log.Error("Failed to create room type", "hotel_id", roomType.HotelID, "error", err)
		return apperrors.Internal("Failed to create room type", err)
	}

	s.cfg.Log.Info("Room type created",
		"room_type_id", roomType.ID,
		"hotel_id", roomType.HotelID,
		"total_room_count", roomType.TotalRoomCount,
	)
	return nil
}

func (s *roomTypeService) GetByID(ctx context.Context, id string) (*model.RoomType, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room type ID cannot be empty")
	}

	roomType, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateError(id, "Failed to retrieve room type", err)
	}
	return roomType, nil
}

func (s *roomTypeService) ListByHotel(ctx context.Context, hotelID string, checkIn, checkOut *time.Time, limit int, offset int64) ([]*model.RoomTypeAvailability, int64, error) {
	if hotelID == "" {
		return nil, 0, apperrors.InvalidInput("Hotel ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	if checkIn == nil || checkOut == nil {
		return s.listPage(ctx, hotelID, limit, offset)
	}

	if err := s.validateRange(*checkIn, *checkOut); err != nil {
		return nil, 0, err
	}

	// Availability depends on the ledger, so filtering happens before paging.
	roomTypes, err := s.repo.FindByHotel(ctx, hotelID, 0, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to list room types", "hotel_id", hotelID, "error", err)
		return nil, 0, apperrors.Internal("Failed to list room types", err)
	}

	free := make([]*model.RoomTypeAvailability, 0, len(roomTypes))
	for _, rt := range roomTypes {
		held, err := s.ledger.FindHeldOverlapping(ctx, rt.ID, *checkIn, *checkOut)
		if err != nil {
			s.cfg.Log.Error("Failed to read reservation ledger", "room_type_id", rt.ID, "error", err)
			return nil, 0, apperrors.Internal("Failed to compute availability", err)
		}
		available := Available(rt.TotalRoomCount, held, *checkIn, *checkOut)
		if available == 0 {
			continue
		}
		free = append(free, &model.RoomTypeAvailability{RoomType: *rt, Available: &available})
	}

	total := int64(len(free))
	if offset >= total {
		return []*model.RoomTypeAvailability{}, total, nil
	}
	end := min(offset+int64(limit), total)
	return free[offset:end], total, nil
}

func (s *roomTypeService) listPage(ctx context.Context, hotelID string, limit int, offset int64) ([]*model.RoomTypeAvailability, int64, error) {
	roomTypes, err := s.repo.FindByHotel(ctx, hotelID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list room types", "hotel_id", hotelID, "error", err)
		return nil, 0, apperrors.Internal("Failed to list room types", err)
	}
	count, err := s.repo.CountByHotel(ctx, hotelID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count room types", err)
	}

	out := make([]*model.RoomTypeAvailability, 0, len(roomTypes))
	for _, rt := range roomTypes {
		out = append(out, &model.RoomTypeAvailability{RoomType: *rt})
	}
	return out, count, nil
}

func (s *roomTypeService) Update(ctx context.Context, id string, updates *model.RoomTypeUpdate) (*model.RoomType, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room type ID cannot be empty")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Room type update validation failed", "room_type_id", id, "error", err)
		return nil, apperrors.Validation("Room type validation failed", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateError(id, "Failed to retrieve room type", err)
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		return nil, s.translateError(id, "Failed to update room type", err)
	}

	s.cfg.Log.Info("Room type updated", "room_type_id", id)
	return merged, nil
}

// Delete refuses while any reservation still holds rooms of the type.
func (s *roomTypeService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Room type ID cannot be empty")
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		held, err := s.ledger.CountHeld(txCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to read reservation ledger", err)
		}
		if held > 0 {
			return apperrors.Conflict(fmt.Sprintf("Room type has %d active reservation(s)", held))
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return s.translateError(id, "Failed to delete room type", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Room type deleted", "room_type_id", id)
	return nil
}

func (s *roomTypeService) GetAvailable(ctx context.Context, id string, checkIn, checkOut time.Time) (int, error) {
	if id == "" {
		return 0, apperrors.InvalidInput("Room type ID cannot be empty")
	}
	if err := s.validateRange(checkIn, checkOut); err != nil {
		return 0, err
	}

	roomType, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return 0, s.translateError(id, "Failed to retrieve room type", err)
	}

	held, err := s.ledger.FindHeldOverlapping(ctx, id, checkIn, checkOut)
	if err != nil {
		s.cfg.Log.Error("Failed to read reservation ledger", "room_type_id", id, "error", err)
		return 0, apperrors.Internal("Failed to compute availability", err)
	}

	return Available(roomType.TotalRoomCount, held, checkIn, checkOut), nil
}

// SetTotalRoomCount never touches existing reservations. When the new total is below
// the peak of future Held occupancy the room type is flagged oversold and reported.
func (s *roomTypeService) SetTotalRoomCount(ctx context.Context, id string, newTotal int) (*model.RoomType, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room type ID cannot be empty")
	}
	if newTotal < 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Total room count cannot be negative, got: %d", newTotal))
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		updated     *model.RoomType
		wasOversold bool
		peak        int
	)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		roomType, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return s.translateError(id, "Failed to retrieve room type", err)
		}
		wasOversold = roomType.Oversold

		peak, err = FuturePeak(txCtx, s.ledger, id, s.now())
		if err != nil {
			return apperrors.Internal("Failed to read reservation ledger", err)
		}
		oversold := peak > newTotal

		if err := s.repo.SetTotalRoomCount(txCtx, id, newTotal, oversold); err != nil {
			return s.translateError(id, "Failed to update room count", err)
		}

		roomType.TotalRoomCount = newTotal
		roomType.Oversold = oversold
		roomType.Version++
		updated = roomType
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case updated.Oversold:
		if !wasOversold {
			metrics.ObserveOversold(true)
		}
		s.cfg.Log.Warn("Room type oversold",
			"room_type_id", id,
			"hotel_id", updated.HotelID,
			"total_room_count", newTotal,
			"peak_held", peak,
		)
		s.publisher.Publish(ctx, events.Event{
			Type: events.RoomTypeOversold,
			Key:  id,
			Payload: map[string]any{
				"room_type_id":     id,
				"hotel_id":         updated.HotelID,
				"total_room_count": newTotal,
				"peak_held":        peak,
			},
		})
	case wasOversold:
		metrics.ObserveOversold(false)
		s.cfg.Log.Info("Room type no longer oversold", "room_type_id", id, "total_room_count", newTotal)
	default:
		s.cfg.Log.Info("Room count updated", "room_type_id", id, "total_room_count", newTotal)
	}

	return updated, nil
}

func (s *roomTypeService) validateRange(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return apperrors.InvalidInput("check_in and check_out are required")
	}
	if !checkIn.Before(checkOut) {
		return apperrors.InvalidInput("check_in must be before check_out")
	}
	return nil
}

func (s *roomTypeService) sanitize(rt *model.RoomType) {
	rt.HotelID = sanitizer.TrimAndNormalize(rt.HotelID)
	rt.Name = sanitizer.NormalizeName(rt.Name)
	rt.Amenities = sanitizer.NormalizeAmenities(rt.Amenities)
	rt.ImageURL = sanitizer.NormalizeURL(rt.ImageURL)
	rt.CancellationPolicy = sanitizer.TrimAndNormalize(rt.CancellationPolicy)
}

func (s *roomTypeService) mergeUpdates(existing *model.RoomType, updates *model.RoomTypeUpdate) *model.RoomType {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.PricePerNight != nil {
		merged.PricePerNight = *updates.PricePerNight
	}
	if updates.Amenities != nil {
		merged.Amenities = *updates.Amenities
	}
	if updates.ImageURL != "" {
		merged.ImageURL = updates.ImageURL
	}
	if updates.CancellationPolicy != "" {
		merged.CancellationPolicy = updates.CancellationPolicy
	}

	return &merged
}

func (s *roomTypeService) validate(roomType *model.RoomType) error {
	if err := s.validator.Validate(roomType); err != nil {
		s.cfg.Log.Warn("Room type validation failed", "error", err)
		return apperrors.Validation("Room type validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *roomTypeService) translateError(id, message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, inventoryerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Room type", id)
	}
	if errors.Is(err, inventoryerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid room type ID format")
	}
	s.cfg.Log.Error(message, "room_type_id", id, "error", err)
	return apperrors.Internal(message, err)
}

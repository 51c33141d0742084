package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "hulu/internal/bookings/errors"
	"hulu/pkg/config"
	mongotx "hulu/pkg/db/mongo"
	"hulu/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, ticketNumber string) (*model.Booking, error)
	// UpdateStatus moves a booking from one status to another. It reports false when
	// the booking was no longer in the from status.
	UpdateStatus(ctx context.Context, ticketNumber string, from, to model.BookingStatus, failReason string) (bool, error)
	// Confirm moves a pending booking to confirmed unless a newer attempt took over.
	Confirm(ctx context.Context, ticketNumber string, attempt int) (bool, error)
	// NextAttempt keeps a booking pending and moves it past the given attempt.
	NextAttempt(ctx context.Context, ticketNumber string, attempt int) (bool, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindArrivals returns confirmed bookings of a hotel checking in on the given day.
	FindArrivals(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error)
	// FindDepartures returns confirmed bookings of a hotel checking out on the given day.
	FindDepartures(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error)
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrAlreadyExists, booking.TicketNumber)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, ticketNumber string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": ticketNumber}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, ticketNumber string, from, to model.BookingStatus, failReason string) (bool, error) {
	set := bson.M{"status": to}
	update := bson.M{"$set": set}
	if failReason != "" {
		set["fail_reason"] = failReason
	} else {
		update["$unset"] = bson.M{"fail_reason": ""}
	}

	return r.updateWhere(ctx, bson.M{"_id": ticketNumber, "status": from}, update)
}

func (r *mongoBookingRepository) Confirm(ctx context.Context, ticketNumber string, attempt int) (bool, error) {
	filter := bson.M{
		"_id":     ticketNumber,
		"status":  model.BookingPending,
		"attempt": attemptFilter(attempt),
	}
	update := bson.M{
		"$set":   bson.M{"status": model.BookingConfirmed},
		"$unset": bson.M{"fail_reason": ""},
	}
	return r.updateWhere(ctx, filter, update)
}

func (r *mongoBookingRepository) NextAttempt(ctx context.Context, ticketNumber string, attempt int) (bool, error) {
	filter := bson.M{
		"_id":     ticketNumber,
		"status":  model.BookingPending,
		"attempt": attemptFilter(attempt),
	}
	update := bson.M{"$set": bson.M{"attempt": attempt + 1}}
	return r.updateWhere(ctx, filter, update)
}

// updateWhere stamps updated_at and reports whether the filter matched.
func (r *mongoBookingRepository) updateWhere(ctx context.Context, filter, update bson.M) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update booking: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// attemptFilter matches documents written before the attempt field existed as
// attempt zero.
func attemptFilter(attempt int) any {
	if attempt == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return attempt
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "check_in", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindArrivals(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return r.findOnDay(ctx, hotelID, "check_in", day)
}

func (r *mongoBookingRepository) FindDepartures(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	return r.findOnDay(ctx, hotelID, "check_out", day)
}

func (r *mongoBookingRepository) findOnDay(ctx context.Context, hotelID, field string, day time.Time) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	filter := bson.M{
		"hotel_id": hotelID,
		"status":   model.BookingConfirmed,
		field:      bson.M{"$gte": start, "$lt": start.AddDate(0, 0, 1)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "guest.last_name", Value: 1}, {Key: "_id", Value: 1}})

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

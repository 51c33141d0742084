package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "hulu/internal/inventory/errors"
	"hulu/pkg/config"
	mongotx "hulu/pkg/db/mongo"
	"hulu/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Room_types"
)

type RoomTypeRepository interface {
	Create(ctx context.Context, roomType *model.RoomType) error
	FindByID(ctx context.Context, id string) (*model.RoomType, error)
	FindByHotel(ctx context.Context, hotelID string, limit int, offset int64) ([]*model.RoomType, error)
	CountByHotel(ctx context.Context, hotelID string) (int64, error)
	Update(ctx context.Context, id string, roomType *model.RoomType) error
	SetTotalRoomCount(ctx context.Context, id string, total int, oversold bool) error
	BumpVersion(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoRoomTypeRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoRoomTypeRepository(cfg *config.Config) RoomTypeRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoRoomTypeRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", inventoryerrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoRoomTypeRepository) Create(ctx context.Context, roomType *model.RoomType) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	roomType.CreatedAt = now
	roomType.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, roomType)
	if err != nil {
		return fmt.Errorf("failed to create room type: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		roomType.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRoomTypeRepository) FindByID(ctx context.Context, id string) (*model.RoomType, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var roomType model.RoomType
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&roomType); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventoryerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room type: %w", err)
	}

	return &roomType, nil
}

func (r *mongoRoomTypeRepository) FindByHotel(ctx context.Context, hotelID string, limit int, offset int64) ([]*model.RoomType, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "price_per_night", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"hotel_id": hotelID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find room types: %w", err)
	}
	defer cursor.Close(ctx)

	roomTypes := make([]*model.RoomType, 0)
	if err := cursor.All(ctx, &roomTypes); err != nil {
		return nil, fmt.Errorf("failed to decode room types: %w", err)
	}
	return roomTypes, nil
}

func (r *mongoRoomTypeRepository) CountByHotel(ctx context.Context, hotelID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"hotel_id": hotelID})
	if err != nil {
		return 0, fmt.Errorf("failed to count room types: %w", err)
	}
	return count, nil
}

// Update rewrites the descriptive fields. Room count, oversold flag and version are
// owned by SetTotalRoomCount and BumpVersion.
func (r *mongoRoomTypeRepository) Update(ctx context.Context, id string, roomType *model.RoomType) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"name":                roomType.Name,
			"capacity":            roomType.Capacity,
			"price_per_night":     roomType.PricePerNight,
			"amenities":           roomType.Amenities,
			"image_url":           roomType.ImageURL,
			"cancellation_policy": roomType.CancellationPolicy,
			"updated_at":          time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	return r.updateOne(ctx, oid, update)
}

func (r *mongoRoomTypeRepository) SetTotalRoomCount(ctx context.Context, id string, total int, oversold bool) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"total_room_count": total,
			"oversold":         oversold,
			"updated_at":       time.Now().UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"version": 1},
	}

	return r.updateOne(ctx, oid, update)
}

// BumpVersion writes to the room type document so that two transactions reserving the
// same room type conflict on it even when their ledger inserts do not.
func (r *mongoRoomTypeRepository) BumpVersion(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	return r.updateOne(ctx, oid, bson.M{"$inc": bson.M{"version": 1}})
}

func (r *mongoRoomTypeRepository) updateOne(ctx context.Context, oid primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update room type: %w", err)
	}
	if result.MatchedCount == 0 {
		return inventoryerrors.ErrNotFound
	}
	return nil
}

func (r *mongoRoomTypeRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete room type: %w", err)
	}
	if result.DeletedCount == 0 {
		return inventoryerrors.ErrNotFound
	}
	return nil
}

func (r *mongoRoomTypeRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

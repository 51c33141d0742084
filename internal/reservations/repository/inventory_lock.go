package repository

import (
	"context"
	"fmt"
	"time"

	reservationerrors "hulu/internal/reservations/errors"
	"hulu/pkg/config"
	mongotx "hulu/pkg/db/mongo"
	"hulu/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	InventoryLockCollectionName = "Inventory_locks"
)

// InventoryLockRepository provides advisory locks keyed by room type. A lock is a
// document with a unique _id; a second insert fails on the duplicate key.
type InventoryLockRepository interface {
	Acquire(ctx context.Context, roomTypeID, owner string, ttl time.Duration) error
	Release(ctx context.Context, roomTypeID, owner string) error
}

type mongoInventoryLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoInventoryLockRepository(cfg *config.Config) InventoryLockRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoInventoryLockRepository{
		cfg:        cfg,
		collection: db.Collection(InventoryLockCollectionName),
	}
}

func LockID(roomTypeID string) string {
	return "inventory_lock_" + roomTypeID
}

// Acquire returns ErrLockHeld while another owner holds an unexpired lock. An expired
// lock left by a crashed writer is removed and acquisition retried once.
func (r *mongoInventoryLockRepository) Acquire(ctx context.Context, roomTypeID, owner string, ttl time.Duration) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC().Truncate(time.Millisecond)
		lock := &model.InventoryLock{
			ID:        LockID(roomTypeID),
			Owner:     owner,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}

		_, err := r.collection.InsertOne(ctx, lock)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to acquire inventory lock: %w", err)
		}

		result, err := r.collection.DeleteOne(ctx, bson.M{
			"_id":        lock.ID,
			"expires_at": bson.M{"$lt": now},
		})
		if err != nil {
			return fmt.Errorf("failed to clear expired inventory lock: %w", err)
		}
		if result.DeletedCount == 0 {
			break
		}
		r.cfg.Log.Warn("Cleared expired inventory lock", "room_type_id", roomTypeID)
	}

	return reservationerrors.ErrLockHeld
}

func (r *mongoInventoryLockRepository) Release(ctx context.Context, roomTypeID, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": LockID(roomTypeID), "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release inventory lock: %w", err)
	}
	return nil
}

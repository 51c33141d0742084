package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "hulu/internal/bookings/repository"
	inventoryrepo "hulu/internal/inventory/repository"
	"hulu/internal/migrations/mongo/validators"
	reservationsrepo "hulu/internal/reservations/repository"
	"hulu/pkg/logger"
)

var (
	RoomTypesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "hotel_id", Value: 1}, {Key: "name", Value: 1}}},
	}

	// ReservationsIndexes back the Held-overlap query run under every reserve.
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "room_type_id", Value: 1},
			{Key: "state", Value: 1},
			{Key: "check_in", Value: 1},
			{Key: "check_out", Value: 1},
		}},
	}

	ReleaseTasksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "executed", Value: 1}, {Key: "due_at", Value: 1}}},
		{Keys: bson.D{{Key: "executed", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
	}

	// InventoryLocksIndexes lets Mongo reap locks left by crashed processes.
	InventoryLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "check_in", Value: -1}}},
		{Keys: bson.D{{Key: "hotel_id", Value: 1}, {Key: "check_in", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "hotel_id", Value: 1}, {Key: "check_out", Value: 1}, {Key: "status", Value: 1}}},
	}
)

type CollectionDefinition struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services use, keyed by name.
func Collections() map[string]CollectionDefinition {
	return map[string]CollectionDefinition{
		inventoryrepo.CollectionName: {
			Indexes:   RoomTypesIndexes,
			Validator: validators.RoomTypeValidator,
		},
		reservationsrepo.CollectionName: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		reservationsrepo.ReleaseTaskCollectionName: {
			Indexes:   ReleaseTasksIndexes,
			Validator: validators.ReleaseTaskValidator,
		},
		reservationsrepo.InventoryLockCollectionName: {
			Indexes:   InventoryLocksIndexes,
			Validator: validators.InventoryLockValidator,
		},
		bookingsrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

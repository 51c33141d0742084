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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReleaseTaskCollectionName = "Release_tasks"
)

type ReleaseTaskRepository interface {
	Insert(ctx context.Context, task *model.ReleaseTask) error
	// FindDue returns unexecuted tasks whose due time is at or before now, oldest first.
	// A task that failed is skipped until its next attempt time.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ReleaseTask, error)
	MarkExecuted(ctx context.Context, id string, at time.Time) error
	// MarkFailed counts a failed release and defers the task to nextAttemptAt.
	MarkFailed(ctx context.Context, id string, nextAttemptAt time.Time, reason string) error
}

type mongoReleaseTaskRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReleaseTaskRepository(cfg *config.Config) ReleaseTaskRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoReleaseTaskRepository{
		cfg:        cfg,
		collection: db.Collection(ReleaseTaskCollectionName),
	}
}

func (r *mongoReleaseTaskRepository) Insert(ctx context.Context, task *model.ReleaseTask) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	task.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: release task %s", reservationerrors.ErrAlreadyExists, task.ID)
		}
		return fmt.Errorf("failed to insert release task: %w", err)
	}
	return nil
}

func (r *mongoReleaseTaskRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ReleaseTask, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"executed": false,
		"due_at":   bson.M{"$lte": now},
		"$or": bson.A{
			bson.M{"next_attempt_at": bson.M{"$exists": false}},
			bson.M{"next_attempt_at": bson.M{"$lte": now}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "due_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due release tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := make([]*model.ReleaseTask, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode release tasks: %w", err)
	}
	return tasks, nil
}

// MarkExecuted is a no-op for a task that already ran or does not exist.
func (r *mongoReleaseTaskRepository) MarkExecuted(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "executed": false},
		bson.M{"$set": bson.M{"executed": true, "executed_at": at.UTC().Truncate(time.Millisecond)}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark release task executed: %w", err)
	}
	return nil
}

func (r *mongoReleaseTaskRepository) MarkFailed(ctx context.Context, id string, nextAttemptAt time.Time, reason string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "executed": false},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{
				"next_attempt_at": nextAttemptAt.UTC().Truncate(time.Millisecond),
				"last_error":      reason,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record release task failure: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
)

const attemptsCollection = "delivery_attempts"

// AttemptRepository handles delivery attempt data operations
type AttemptRepository struct {
	client *mongodb.MongoClient
}

// NewAttemptRepository creates a new delivery attempt repository
func NewAttemptRepository(client *mongodb.MongoClient) *AttemptRepository {
	return &AttemptRepository{client: client}
}

// EnsureIndexes creates the indexes attempt queries depend on
func (r *AttemptRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, attemptsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notification_id", Value: 1}, {Key: "channel", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
}

// Create persists a new delivery attempt. The unique (notification_id,
// channel) index rejects a second attempt for the same pair.
func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	now := time.Now()
	attempt.ID = primitive.NewObjectID()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now

	_, err := r.client.Collection(attemptsCollection).InsertOne(ctx, attempt)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateAttempt
	}
	return err
}

// Update writes the attempt's current state. Attempts already terminal in
// the store are never overwritten.
func (r *AttemptRepository) Update(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	attempt.UpdatedAt = time.Now()

	filter := bson.M{
		"_id":      attempt.ID,
		"terminal": bson.M{"$ne": true},
		"status":   bson.M{"$ne": domain.AttemptStatusDelivered},
	}
	_, err := r.client.Collection(attemptsCollection).UpdateOne(ctx, filter, bson.M{"$set": attempt})
	return err
}

// FindByNotification returns every attempt made for a notification
func (r *AttemptRepository) FindByNotification(ctx context.Context, notificationID string) ([]*domain.DeliveryAttempt, error) {
	objectID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return nil, err
	}

	cursor, err := r.client.Collection(attemptsCollection).Find(ctx, bson.M{"notification_id": objectID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []*domain.DeliveryAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

const notificationsCollection = "notifications"

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	client *mongodb.MongoClient
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(client *mongodb.MongoClient) *NotificationRepository {
	return &NotificationRepository{client: client}
}

// EnsureIndexes creates the indexes list and read queries depend on
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, notificationsCollection, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "related_entity_id", Value: 1}}},
	})
}

// Create persists a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	now := time.Now()
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if notification.ScheduledAt.IsZero() {
		notification.ScheduledAt = now
	}

	_, err := r.client.Collection(notificationsCollection).InsertOne(ctx, notification)
	return err
}

// FindByID finds a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid notification id", err)
	}

	var notification domain.Notification
	err = r.client.Collection(notificationsCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&notification)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError("notification not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

// FindByRecipient lists a recipient's notifications newest first, with
// optional type and unread filters and pagination
func (r *NotificationRepository) FindByRecipient(ctx context.Context, recipientID string, req domain.GetNotificationsRequest) ([]*domain.Notification, int64, error) {
	filter := bson.M{"recipient_id": recipientID}
	if req.Type != "" {
		filter["type"] = req.Type
	}
	if req.UnreadOnly {
		filter["is_read"] = false
	}

	coll := r.client.Collection(notificationsCollection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var notifications []*domain.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// UnreadCount returns the recipient's number of unread notifications
func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return r.client.Collection(notificationsCollection).CountDocuments(ctx,
		bson.M{"recipient_id": recipientID, "is_read": false})
}

// MarkSent records the first successful handoff time
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid notification id", err)
	}
	_, err = r.client.Collection(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": objectID, "sent_at": nil},
		bson.M{"$set": bson.M{"sent_at": at, "updated_at": at}})
	return err
}

// MarkRead sets the read flag for the recipient's own notification. Already
// read documents are left untouched, so the operation is idempotent.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid notification id", err)
	}
	_, err = r.client.Collection(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": objectID, "recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at, "updated_at": at}})
	return err
}

// BulkMarkRead marks many of the recipient's notifications read and returns
// how many actually changed
func (r *NotificationRepository) BulkMarkRead(ctx context.Context, ids []string, recipientID string, at time.Time) (int64, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, apperrors.NewValidationError("invalid notification id", err)
		}
		objectIDs = append(objectIDs, objectID)
	}

	res, err := r.client.Collection(notificationsCollection).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": objectIDs}, "recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at, "updated_at": at}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Cancel voids an undelivered notification so queued attempts skip it
func (r *NotificationRepository) Cancel(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid notification id", err)
	}
	_, err = r.client.Collection(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"cancelled": true, "updated_at": time.Now()}})
	return err
}

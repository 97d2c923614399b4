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
)

const reminderJobsCollection = "reminder_jobs"

// ReminderJobRepository handles reminder job data operations, including the
// claim protocol that keeps concurrent scheduler instances from firing the
// same job
type ReminderJobRepository struct {
	client *mongodb.MongoClient
}

// NewReminderJobRepository creates a new reminder job repository
func NewReminderJobRepository(client *mongodb.MongoClient) *ReminderJobRepository {
	return &ReminderJobRepository{client: client}
}

// EnsureIndexes creates the indexes the poll and entity queries depend on
func (r *ReminderJobRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, reminderJobsCollection, []mongo.IndexModel{
		{Keys: bson.D{{Key: "trigger_at", Value: 1}, {Key: "sent_at", Value: 1}, {Key: "cancelled", Value: 1}}},
		{Keys: bson.D{{Key: "related_entity_id", Value: 1}, {Key: "sent_at", Value: 1}}},
	})
}

// CreateMany persists a batch of reminder jobs
func (r *ReminderJobRepository) CreateMany(ctx context.Context, jobs []*domain.ReminderJob) error {
	now := time.Now()
	docs := make([]interface{}, 0, len(jobs))
	for _, job := range jobs {
		job.ID = primitive.NewObjectID()
		job.CreatedAt = now
		job.UpdatedAt = now
		docs = append(docs, job)
	}
	_, err := r.client.Collection(reminderJobsCollection).InsertMany(ctx, docs)
	return err
}

// ClaimDue atomically claims due jobs one at a time until limit is reached
// or none remain. A claim older than staleAfter is treated as abandoned and
// may be taken over.
func (r *ReminderJobRepository) ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, claimedBy string, limit int) ([]*domain.ReminderJob, error) {
	filter := bson.M{
		"trigger_at": bson.M{"$lte": now},
		"sent_at":    nil,
		"cancelled":  false,
		"$or": []bson.M{
			{"claimed_at": nil},
			{"claimed_at": bson.M{"$lt": now.Add(-staleAfter)}},
		},
	}
	update := bson.M{"$set": bson.M{
		"claimed_at": now,
		"claimed_by": claimedBy,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var claimed []*domain.ReminderJob
	for len(claimed) < limit {
		var job domain.ReminderJob
		err := r.client.Collection(reminderJobsCollection).
			FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, &job)
	}
	return claimed, nil
}

// MarkSent records that the job fired
func (r *ReminderJobRepository) MarkSent(ctx context.Context, jobID string, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return err
	}
	_, err = r.client.Collection(reminderJobsCollection).UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"sent_at": at, "updated_at": at}})
	return err
}

// ReleaseClaim returns a claimed job to the pool after a firing failure
func (r *ReminderJobRepository) ReleaseClaim(ctx context.Context, jobID string) error {
	objectID, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return err
	}
	_, err = r.client.Collection(reminderJobsCollection).UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$set":   bson.M{"updated_at": time.Now()},
			"$unset": bson.M{"claimed_at": "", "claimed_by": ""},
		})
	return err
}

// CancelUnsent voids every unsent job for an entity and returns how many
// were affected
func (r *ReminderJobRepository) CancelUnsent(ctx context.Context, entityID string) (int64, error) {
	res, err := r.client.Collection(reminderJobsCollection).UpdateMany(ctx,
		bson.M{"related_entity_id": entityID, "sent_at": nil, "cancelled": false},
		bson.M{"$set": bson.M{"cancelled": true, "updated_at": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountUnsent counts an entity's pending jobs
func (r *ReminderJobRepository) CountUnsent(ctx context.Context, entityID string) (int64, error) {
	return r.client.Collection(reminderJobsCollection).CountDocuments(ctx,
		bson.M{"related_entity_id": entityID, "sent_at": nil, "cancelled": false})
}

// CountForEntity counts every job ever created for the entity, sent and
// cancelled ones included
func (r *ReminderJobRepository) CountForEntity(ctx context.Context, entityID string) (int64, error) {
	return r.client.Collection(reminderJobsCollection).CountDocuments(ctx,
		bson.M{"related_entity_id": entityID})
}

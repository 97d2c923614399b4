package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
)

const analyticsCollection = "delivery_stats_daily"

// AnalyticsRepository stores per-day delivery counters keyed by day,
// notification type and channel
type AnalyticsRepository struct {
	client *mongodb.MongoClient
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(client *mongodb.MongoClient) *AnalyticsRepository {
	return &AnalyticsRepository{client: client}
}

// EnsureIndexes creates the unique counter key index
func (r *AnalyticsRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, analyticsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "day", Value: 1}, {Key: "type", Value: 1}, {Key: "channel", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

// IncrementDaily bumps one counter field, creating the document on first use
func (r *AnalyticsRepository) IncrementDaily(ctx context.Context, day string, t domain.NotificationType, ch domain.Channel, field string, delta int64) error {
	filter := bson.M{"day": day, "type": t, "channel": ch}
	update := bson.M{"$inc": bson.M{field: delta}}
	_, err := r.client.Collection(analyticsCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Report returns every daily counter document in the inclusive date range
func (r *AnalyticsRepository) Report(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error) {
	filter := bson.M{"day": bson.M{
		"$gte": from.UTC().Format("2006-01-02"),
		"$lte": to.UTC().Format("2006-01-02"),
	}}
	opts := options.Find().SetSort(bson.D{{Key: "day", Value: 1}})

	cursor, err := r.client.Collection(analyticsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []domain.DailyStat
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

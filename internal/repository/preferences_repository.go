package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
)

const preferencesCollection = "user_preferences"

// PreferencesRepository handles user notification preference storage
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// EnsureIndexes creates the unique (user, type) index
func (r *PreferencesRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, preferencesCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "notification_type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

// GetByUser returns the stored preference for a user and type, or nil when
// none exists so the caller falls back to defaults
func (r *PreferencesRepository) GetByUser(ctx context.Context, userID string, t domain.NotificationType) (*domain.UserPreference, error) {
	var pref domain.UserPreference
	err := r.client.Collection(preferencesCollection).
		FindOne(ctx, bson.M{"user_id": userID, "notification_type": t}).Decode(&pref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// ListByUser returns every stored preference for a user
func (r *PreferencesRepository) ListByUser(ctx context.Context, userID string) ([]*domain.UserPreference, error) {
	cursor, err := r.client.Collection(preferencesCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var prefs []*domain.UserPreference
	if err := cursor.All(ctx, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// Upsert stores a preference, replacing any existing one for the same user
// and type
func (r *PreferencesRepository) Upsert(ctx context.Context, pref *domain.UserPreference) error {
	now := time.Now()
	pref.UpdatedAt = now

	filter := bson.M{"user_id": pref.UserID, "notification_type": pref.Type}
	update := bson.M{
		"$set": bson.M{
			"channels":          pref.Channels,
			"enabled":           pref.Enabled,
			"quiet_hours_start": pref.QuietHoursStart,
			"quiet_hours_end":   pref.QuietHoursEnd,
			"timezone":          pref.Timezone,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{
			"user_id":    pref.UserID,
			"notification_type": pref.Type,
			"created_at": now,
		},
	}
	_, err := r.client.Collection(preferencesCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

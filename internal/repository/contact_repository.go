package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/mongodb"
)

const contactsCollection = "user_contacts"

// Contact holds the delivery addresses known for one user
type Contact struct {
	UserID    string `bson:"user_id" json:"user_id"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	PushToken string `bson:"push_token,omitempty" json:"push_token,omitempty"`
}

// ContactRepository resolves recipient delivery addresses per channel
type ContactRepository struct {
	client *mongodb.MongoClient
}

// NewContactRepository creates a new contact repository
func NewContactRepository(client *mongodb.MongoClient) *ContactRepository {
	return &ContactRepository{client: client}
}

// EnsureIndexes creates the unique user index
func (r *ContactRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndexes(ctx, contactsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

// AddressFor returns the address a channel should deliver to. In-app
// deliveries address the user ID itself.
func (r *ContactRepository) AddressFor(ctx context.Context, userID string, ch domain.Channel) (string, error) {
	if ch == domain.ChannelInApp {
		return userID, nil
	}

	var contact Contact
	err := r.client.Collection(contactsCollection).
		FindOne(ctx, bson.M{"user_id": userID}).Decode(&contact)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("no contact record for user %s", userID)
	}
	if err != nil {
		return "", err
	}

	var address string
	switch ch {
	case domain.ChannelSMS, domain.ChannelWhatsApp:
		address = contact.Phone
	case domain.ChannelEmail:
		address = contact.Email
	case domain.ChannelPush:
		address = contact.PushToken
	}
	if address == "" {
		return "", fmt.Errorf("user %s has no %s address", userID, ch)
	}
	return address, nil
}

// Upsert stores a user's contact addresses
func (r *ContactRepository) Upsert(ctx context.Context, contact *Contact) error {
	filter := bson.M{"user_id": contact.UserID}
	update := bson.M{"$set": contact}
	_, err := r.client.Collection(contactsCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/quickcart/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDocument is the stored shape: one document per user with the
// product id to quantity mapping.
type cartDocument struct {
	UserID    string         `bson:"user_id"`
	Items     map[string]int `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// MongoRepository stores carts in the "carts" collection.
type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	raw, err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Empty(), ErrCartNotFound
		}
		return domain.Empty(), fmt.Errorf("failed to get cart: %w", err)
	}

	var doc cartDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return domain.Empty(), fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}

	return domain.FromItems(doc.Items), nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	now := m.now()

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"items":      cart.Items(),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// abandoned carts expire after 90 days
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/quickcart/internal/cart/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestDB(t *testing.T) *MongoRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, MongoConfig{URI: uri, Database: "testdb"})
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	return repo
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.True(t, cart.IsEmpty())
}

func TestSaveCart_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart := domain.Empty().Add("p1").Add("p1").Add("p2")
	require.NoError(t, repo.SaveCart(ctx, "user123", cart))

	got, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, got.Items())
}

func TestSaveCart_OverwritesAndKeepsCreatedAt(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, "user123", domain.Empty().Add("p1")))

	var first cartDocument
	require.NoError(t, repo.collection.FindOne(ctx, bson.M{"user_id": "user123"}).Decode(&first))

	repo.now = func() time.Time { return first.CreatedAt.Add(time.Hour) }
	require.NoError(t, repo.SaveCart(ctx, "user123", domain.Empty().Add("p9")))

	var second cartDocument
	require.NoError(t, repo.collection.FindOne(ctx, bson.M{"user_id": "user123"}).Decode(&second))
	assert.Equal(t, map[string]int{"p9": 1}, second.Items)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	count, err := repo.collection.CountDocuments(ctx, bson.M{"user_id": "user123"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGetCart_MalformedDocument(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.collection.InsertOne(ctx, bson.M{"user_id": "user123", "items": "not-a-map"})
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "user123")
	assert.ErrorIs(t, err, ErrMalformedCart)
	assert.True(t, cart.IsEmpty())
}

func TestDeleteCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, "user123", domain.Empty().Add("p1")))
	require.NoError(t, repo.DeleteCart(ctx, "user123"))

	_, err := repo.GetCart(ctx, "user123")
	assert.ErrorIs(t, err, ErrCartNotFound)

	assert.ErrorIs(t, repo.DeleteCart(ctx, "user123"), ErrCartNotFound)
}

func TestContextCancellation(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

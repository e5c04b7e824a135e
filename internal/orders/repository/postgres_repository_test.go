package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/quickcart/internal/orders/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *Repository {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	return repo
}

func newTestOrder(userID, key string, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		AddressID: "addr-1",
		Amount:    decimal.RequireFromString("25.00"),
		Status:    domain.OrderStatusPlaced,
		Items: []domain.OrderItem{
			{ProductID: "P1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "P2", ProductName: "Pen", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
		IdempotencyKey: key,
		CreatedAt:      createdAt,
	}
}

func TestCreateOrder_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := newTestOrder("user-1", "", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.CreateOrder(ctx, order))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "addr-1", got.AddressID)
	assert.Equal(t, "25.00", got.Amount.StringFixed(2))
	assert.Equal(t, domain.OrderStatusPlaced, got.Status)
	assert.Empty(t, got.IdempotencyKey)
	assert.True(t, got.CreatedAt.Equal(order.CreatedAt))
	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
}

func TestCreateOrder_WritesOutboxEvent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := newTestOrder("user-1", "", time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, order))

	events, err := repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
	assert.Equal(t, domain.EventTypeOrderPlaced, events[0].EventType)

	var payload domain.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, "25.00", payload.Amount)

	require.NoError(t, repo.MarkEventAsPublished(ctx, events[0].ID))
	events, err = repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.Error(t, repo.MarkEventAsPublished(ctx, uuid.New()))
}

func TestCreateOrder_DuplicateIdempotencyKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := newTestOrder("user-1", "key-1", time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, first))

	err := repo.CreateOrder(ctx, newTestOrder("user-1", "key-1", time.Now().UTC()))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	// same key for another user is a different order
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-2", "key-1", time.Now().UTC())))

	got, err := repo.GetOrderByIdempotencyKey(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	events, err := repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2, "rejected duplicate must not leave an outbox event")
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.GetOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = repo.GetOrderByIdempotencyKey(ctx, "user-1", "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersByUserID_NewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	older := newTestOrder("user-1", "", base)
	newer := newTestOrder("user-1", "", base.Add(time.Minute))
	other := newTestOrder("user-2", "", base)
	for _, o := range []*domain.Order{older, newer, other} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}

	orders, err := repo.ListOrdersByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)

	none, err := repo.ListOrdersByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

func newOrderRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderLineItem{}))
	return db
}

func TestOrderRepositoryCreateAndFind(t *testing.T) {
	t.Parallel()

	db := newOrderRepoDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &models.Order{
		GuestID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodCard,
		SubtotalCents: 4500,
		TotalCents:    4500,
		Items: []models.OrderLineItem{
			{ProductID: uuid.New(), Name: "Camp stove", Qty: 1, UnitPriceCents: 4500, TotalCents: 4500},
		},
	}
	require.NoError(t, repo.Create(ctx, nil, order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)

	found, err := repo.Find(ctx, nil, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, order.ID, found.Items[0].OrderID)
	assert.Equal(t, "Camp stove", found.Items[0].Name)

	_, err = repo.Find(ctx, nil, uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestOrderRepositoryMarkPaidIsGuarded(t *testing.T) {
	t.Parallel()

	db := newOrderRepoDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &models.Order{GuestID: uuid.New(), PaymentMethod: enums.PaymentMethodCard}
	require.NoError(t, repo.Create(ctx, nil, order))

	now := time.Now().UTC()
	won, err := repo.MarkPaid(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.True(t, won)

	// Second transition loses: the order already left pending_payment.
	won, err = repo.MarkPaid(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = repo.MarkCancelled(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestOrderRepositoryListStalePendingCOD(t *testing.T) {
	t.Parallel()

	db := newOrderRepoDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	stale := &models.Order{GuestID: uuid.New(), PaymentMethod: enums.PaymentMethodCOD}
	require.NoError(t, repo.Create(ctx, nil, stale))
	fresh := &models.Order{GuestID: uuid.New(), PaymentMethod: enums.PaymentMethodCOD}
	require.NoError(t, repo.Create(ctx, nil, fresh))
	card := &models.Order{GuestID: uuid.New(), PaymentMethod: enums.PaymentMethodCard}
	require.NoError(t, repo.Create(ctx, nil, card))

	backdated := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{stale.ID, card.ID}).
		Update("created_at", backdated).Error)

	got, err := repo.ListStalePendingCOD(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discount_applied INTEGER NOT NULL DEFAULT 0,
  discount_value NUMERIC NOT NULL DEFAULT 0,
  discount_type TEXT NOT NULL DEFAULT 'NONE',
  shipping_cost NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderProducts := `
CREATE TABLE IF NOT EXISTS order_products (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_sku TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  unit_of_measure_id INTEGER,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (order_id, product_sku)
);`

	for _, stmt := range []string{orders, orderProducts} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func TestUpsertOrderIdempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	order := &models.Order{
		ID:     "AVBZZ10001",
		UserID: userID,
		Status: enums.OrderStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, order))

	// same id again with a different status updates in place
	update := &models.Order{
		ID:     "AVBZZ10001",
		UserID: userID,
		Status: enums.OrderStatusOnHold,
	}
	require.NoError(t, repo.Upsert(ctx, update))

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", "AVBZZ10001").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	found, err := repo.FindByID(ctx, "AVBZZ10001")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOnHold, found.Status)
}

func TestUpdateStatusGuarded(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Order{
		ID:     "AVBZZ10002",
		UserID: uuid.New(),
		Status: enums.OrderStatusPending,
	})
	require.NoError(t, err)

	moved, err := repo.UpdateStatus(ctx, "AVBZZ10002", enums.OrderStatusPending, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.True(t, moved)

	// second confirmation finds the order no longer PENDING
	moved, err = repo.UpdateStatus(ctx, "AVBZZ10002", enums.OrderStatusPending, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestUpsertItemUpdatesQuantity(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Order{ID: "AVBZZ10003", UserID: uuid.New(), Status: enums.OrderStatusPending})
	require.NoError(t, err)

	item := &models.OrderProduct{
		ID:         uuid.New(),
		OrderID:    "AVBZZ10003",
		ProductSKU: "AVO-R-001",
		Price:      decimal.NewFromInt(100),
		Quantity:   2,
	}
	require.NoError(t, repo.UpsertItem(ctx, item))

	again := &models.OrderProduct{
		ID:         uuid.New(),
		OrderID:    "AVBZZ10003",
		ProductSKU: "AVO-R-001",
		Price:      decimal.NewFromInt(120),
		Quantity:   5,
	}
	require.NoError(t, repo.UpsertItem(ctx, again))

	order, err := repo.FindByID(ctx, "AVBZZ10003")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 5, order.Items[0].Quantity)
	assert.Equal(t, "120", order.Items[0].Price.String())
}

func TestUpdateTotals(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Order{ID: "AVBZZ10004", UserID: uuid.New(), Status: enums.OrderStatusPending})
	require.NoError(t, err)

	totals := Totals{
		Subtotal:        decimal.NewFromInt(300),
		DiscountApplied: true,
		DiscountValue:   decimal.NewFromInt(30),
		DiscountType:    enums.DiscountTypeFirstPurchase,
		ShippingCost:    decimal.Zero,
		Total:           decimal.NewFromInt(270),
	}
	require.NoError(t, repo.UpdateTotals(ctx, "AVBZZ10004", totals))

	order, err := repo.FindByID(ctx, "AVBZZ10004")
	require.NoError(t, err)
	assert.Equal(t, "300", order.Subtotal.String())
	assert.True(t, order.DiscountApplied)
	assert.Equal(t, "30", order.DiscountValue.String())
	assert.Equal(t, enums.DiscountTypeFirstPurchase, order.DiscountType)
	assert.Equal(t, "270", order.Total.String())
}

func TestListOpenWithItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	for _, seed := range []struct {
		id     string
		status enums.OrderStatus
	}{
		{"AVBZZ10005", enums.OrderStatusPending},
		{"AVBZZ10006", enums.OrderStatusProcessing},
		{"AVBZZ10007", enums.OrderStatusCancelled},
	} {
		_, err := repo.Create(ctx, &models.Order{ID: seed.id, UserID: userID, Status: seed.status})
		require.NoError(t, err)
	}

	open, err := repo.ListOpenWithItems(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(open))
	for _, order := range open {
		ids = append(ids, order.ID)
	}
	assert.Contains(t, ids, "AVBZZ10005")
	assert.Contains(t, ids, "AVBZZ10006")
	assert.NotContains(t, ids, "AVBZZ10007")
}

func TestForceStatusService(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &models.Order{ID: "AVBZZ10008", UserID: uuid.New(), Status: enums.OrderStatusDelivered})
	require.NoError(t, err)

	// any state may be forced to CANCELLED
	require.NoError(t, svc.ForceStatus(ctx, "AVBZZ10008", enums.OrderStatusCancelled))

	order, err := repo.FindByID(ctx, "AVBZZ10008")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)

	// PROCESSING is reserved for payment confirmation
	err = svc.ForceStatus(ctx, "AVBZZ10008", enums.OrderStatusProcessing)
	require.Error(t, err)

	err = svc.ForceStatus(ctx, "AVB404", enums.OrderStatusOnHold)
	require.Error(t, err)
}

func TestListOrdersPagesNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	// timestamps far in the future so rows from other tests sort after these
	base := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"AVBPG10001", "AVBPG10002", "AVBPG10003"} {
		require.NoError(t, repo.Upsert(ctx, &models.Order{
			ID:        id,
			UserID:    uuid.New(),
			Status:    enums.OrderStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	first, err := svc.ListOrders(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, "AVBPG10003", first.Orders[0].ID)
	assert.Equal(t, "AVBPG10002", first.Orders[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListOrders(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.NotEmpty(t, second.Orders)
	assert.Equal(t, "AVBPG10001", second.Orders[0].ID)
}

func TestListOrdersRejectsMalformedCursor(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.ListOrders(context.Background(), pagination.Params{Cursor: "not-base64!!"})
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeValidation, coded.Code())
}

package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS products (
  sku TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  purchase_price NUMERIC,
  stock INTEGER NOT NULL DEFAULT 0,
  best_seller INTEGER NOT NULL DEFAULT 0,
  unit_of_measure_id INTEGER,
  updated_at DATETIME
);`, `
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
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS stock_movements (
  id TEXT PRIMARY KEY,
  product_sku TEXT NOT NULL,
  movement_type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  related_order_id TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS missing_items (
  id TEXT PRIMARY KEY,
  product_sku TEXT NOT NULL,
  order_id TEXT NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  missing_quantity INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  UNIQUE (product_sku, order_id)
);`}

	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrderWithItem(t *testing.T, db *gorm.DB, orderID, sku string, qty int, status enums.OrderStatus) {
	t.Helper()
	require.NoError(t, db.Create(&models.Order{ID: orderID, UserID: uuid.New(), Status: status}).Error)
	require.NoError(t, db.Create(&models.OrderProduct{
		ID:         uuid.New(),
		OrderID:    orderID,
		ProductSKU: sku,
		Price:      decimal.NewFromInt(100),
		Quantity:   qty,
	}).Error)
}

func TestRecordOutSkipsZeroQuantity(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.RecordOut(ctx, db, "AVBAA00001", "AVO-L-001", 0, "SALE"))

	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordInAndOut(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.RecordIn(ctx, db, "AVO-L-002", 30, "SOURCING"))
	require.NoError(t, svc.RecordOut(ctx, db, "AVBAA00002", "AVO-L-002", 3, "SALE"))

	movements, err := repo.ListMovementsBySKU(ctx, "AVO-L-002")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, enums.MovementTypeIn, movements[0].MovementType)
	assert.Equal(t, 30, movements[0].Quantity)
	assert.Nil(t, movements[0].RelatedOrderID)
	assert.Equal(t, enums.MovementTypeOut, movements[1].MovementType)
	require.NotNil(t, movements[1].RelatedOrderID)
	assert.Equal(t, "AVBAA00002", *movements[1].RelatedOrderID)
}

func TestRecomputeMissingSnapshotsShortage(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{SKU: "AVO-M-001", Name: "n", Price: decimal.NewFromInt(100), Stock: 2}).Error)
	seedOrderWithItem(t, db, "AVBMM00001", "AVO-M-001", 5, enums.OrderStatusPending)

	require.NoError(t, svc.RecomputeMissing(ctx, db))

	missing, err := repo.ListMissingByOrder(ctx, "AVBMM00001")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, 2, missing[0].Stock)
	assert.Equal(t, 3, missing[0].MissingQuantity)

	// restock above demand and recompute: snapshot clears
	require.NoError(t, db.Model(&models.Product{}).Where("sku = ?", "AVO-M-001").Update("stock", 10).Error)
	require.NoError(t, svc.RecomputeMissing(ctx, db))

	missing, err = repo.ListMissingByOrder(ctx, "AVBMM00001")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRecomputeMissingIgnoresClosedOrders(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{SKU: "AVO-M-002", Name: "n", Price: decimal.NewFromInt(100), Stock: 0}).Error)
	seedOrderWithItem(t, db, "AVBMM00002", "AVO-M-002", 4, enums.OrderStatusCancelled)

	require.NoError(t, svc.RecomputeMissing(ctx, db))

	missing, err := repo.ListMissingByOrder(ctx, "AVBMM00002")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRecomputeMissingUpsertsExistingPair(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{SKU: "AVO-M-003", Name: "n", Price: decimal.NewFromInt(100), Stock: 1}).Error)
	seedOrderWithItem(t, db, "AVBMM00003", "AVO-M-003", 6, enums.OrderStatusProcessing)

	require.NoError(t, svc.RecomputeMissing(ctx, db))
	require.NoError(t, svc.RecomputeMissing(ctx, db))

	var count int64
	require.NoError(t, db.Model(&models.MissingItem{}).Where("order_id = ?", "AVBMM00003").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	missing, err := repo.ListMissingByOrder(ctx, "AVBMM00003")
	require.NoError(t, err)
	assert.Equal(t, 5, missing[0].MissingQuantity)
}

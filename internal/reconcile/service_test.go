package reconcile

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

	"github.com/avoberry/avoberry-backend/internal/catalog"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/internal/orders"
	"github.com/avoberry/avoberry-backend/internal/shipments"
	"github.com/avoberry/avoberry-backend/internal/users"
	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

type passthroughTx struct {
	db *gorm.DB
}

func (p passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

func setupReconcileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  dni TEXT NOT NULL UNIQUE,
  username TEXT NOT NULL,
  email TEXT NOT NULL,
  first_name TEXT,
  last_name TEXT,
  phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_discounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  has_discount INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS delivery_addresses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  street TEXT NOT NULL,
  city TEXT NOT NULL,
  zip_code TEXT NOT NULL
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  gateway_payment_id INTEGER,
  external_reference TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'PENDING',
  status_detail TEXT NOT NULL DEFAULT '',
  amount NUMERIC NOT NULL DEFAULT 0,
  net_amount NUMERIC NOT NULL DEFAULT 0,
  taxes_amount NUMERIC NOT NULL DEFAULT 0,
  currency_id TEXT NOT NULL DEFAULT 'COP',
  method TEXT NOT NULL DEFAULT 'ACCOUNT_MONEY',
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  address TEXT NOT NULL,
  city TEXT NOT NULL,
  zip_code TEXT NOT NULL,
  created_at DATETIME
);`}

	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newEngine(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	shipmentsSvc, err := shipments.NewService(shipments.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		orders.NewRepository(db),
		users.NewRepository(db),
		catalog.NewRepository(db),
		ledgerSvc,
		shipmentsSvc,
		passthroughTx{db: db},
		Config{ShippingFlatRate: decimal.NewFromInt(8000), BestSellerThreshold: 20},
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

type fixture struct {
	user    *models.User
	orderID string
}

// seedOrder creates a buyer with an address and a PENDING order of qty units.
func seedOrder(t *testing.T, db *gorm.DB, dni, orderID, sku string, stock, qty int, withDiscount bool) fixture {
	t.Helper()

	user := &models.User{ID: uuid.New(), DNI: dni, Username: "u" + dni, Email: dni + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.DeliveryAddress{UserID: user.ID, Street: "Calle 10", City: "Bogota", ZipCode: "110111"}).Error)

	if withDiscount {
		expires := time.Now().Add(72 * time.Hour)
		require.NoError(t, db.Create(&models.ReferralDiscount{
			ID:          uuid.New(),
			UserID:      user.ID,
			HasDiscount: true,
			ExpiresAt:   &expires,
		}).Error)
	}

	require.NoError(t, db.Create(&models.Product{SKU: sku, Name: "Product " + sku, Price: decimal.NewFromInt(100), Stock: stock}).Error)
	require.NoError(t, db.Create(&models.Order{ID: orderID, UserID: user.ID, Status: enums.OrderStatusPending}).Error)
	require.NoError(t, db.Create(&models.OrderProduct{
		ID:         uuid.New(),
		OrderID:    orderID,
		ProductSKU: sku,
		Price:      decimal.NewFromInt(100),
		Quantity:   qty,
	}).Error)

	return fixture{user: user, orderID: orderID}
}

func approvedEvent(orderID, sku string, qty int) PaymentEvent {
	gatewayID := int64(987654)
	return PaymentEvent{
		OrderID:           orderID,
		Status:            enums.PaymentStatusApproved,
		GatewayPaymentID:  &gatewayID,
		ExternalReference: orderID,
		Amount:            decimal.NewFromInt(270),
		CurrencyID:        "COP",
		Method:            enums.PaymentMethodCreditCard,
		Items:             []PaymentItem{{SKU: sku, Quantity: qty}},
	}
}

func TestConfirmPaymentFirstPurchase(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)
	ctx := context.Background()

	fix := seedOrder(t, db, "40012345", "AVBRC12345", "AVO-RC-001", 10, 3, true)

	require.NoError(t, svc.ConfirmPayment(ctx, approvedEvent(fix.orderID, "AVO-RC-001", 3)))

	var order models.Order
	require.NoError(t, db.Preload("Items").Where("id = ?", fix.orderID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, "300", order.Subtotal.String())
	assert.True(t, order.DiscountApplied)
	assert.Equal(t, "30", order.DiscountValue.String())
	assert.Equal(t, enums.DiscountTypeFirstPurchase, order.DiscountType)
	assert.True(t, order.ShippingCost.IsZero())
	assert.Equal(t, "270", order.Total.String())
	// rescaled line price persisted
	require.Len(t, order.Items, 1)
	assert.Equal(t, "90", order.Items[0].Price.String())

	var product models.Product
	require.NoError(t, db.Where("sku = ?", "AVO-RC-001").First(&product).Error)
	assert.Equal(t, 7, product.Stock)

	var movements []models.StockMovement
	require.NoError(t, db.Where("related_order_id = ?", fix.orderID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, enums.MovementTypeOut, movements[0].MovementType)
	assert.Equal(t, 3, movements[0].Quantity)

	var payment models.Payment
	require.NoError(t, db.Where("order_id = ?", fix.orderID).First(&payment).Error)
	assert.Equal(t, enums.PaymentStatusApproved, payment.Status)

	var shipment models.Shipment
	require.NoError(t, db.Where("order_id = ?", fix.orderID).First(&shipment).Error)
	assert.Equal(t, "Calle 10", shipment.Address)

	// discount consumed, second apply finds nothing usable
	var discount models.ReferralDiscount
	require.NoError(t, db.Where("user_id = ?", fix.user.ID).First(&discount).Error)
	assert.False(t, discount.HasDiscount)
	assert.Nil(t, discount.ExpiresAt)
}

func TestConfirmPaymentCapsDeduction(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)
	ctx := context.Background()

	fix := seedOrder(t, db, "40054321", "AVBRC54321", "AVO-RC-002", 2, 5, false)

	require.NoError(t, svc.ConfirmPayment(ctx, approvedEvent(fix.orderID, "AVO-RC-002", 5)))

	var product models.Product
	require.NoError(t, db.Where("sku = ?", "AVO-RC-002").First(&product).Error)
	assert.Equal(t, 0, product.Stock)

	// movement records what actually left the shelf, not what was asked
	var movements []models.StockMovement
	require.NoError(t, db.Where("related_order_id = ?", fix.orderID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, 2, movements[0].Quantity)

	var missing []models.MissingItem
	require.NoError(t, db.Where("order_id = ?", fix.orderID).Find(&missing).Error)
	require.Len(t, missing, 1)
	assert.Equal(t, 3, missing[0].MissingQuantity)
}

func TestConfirmPaymentNonApprovedIgnored(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)
	ctx := context.Background()

	fix := seedOrder(t, db, "40011111", "AVBRC11111", "AVO-RC-003", 10, 2, false)

	event := approvedEvent(fix.orderID, "AVO-RC-003", 2)
	event.Status = enums.PaymentStatusRejected
	require.NoError(t, svc.ConfirmPayment(ctx, event))

	var order models.Order
	require.NoError(t, db.Where("id = ?", fix.orderID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)

	var product models.Product
	require.NoError(t, db.Where("sku = ?", "AVO-RC-003").First(&product).Error)
	assert.Equal(t, 10, product.Stock)
}

func TestConfirmPaymentOrderNotFound(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)

	err := svc.ConfirmPayment(context.Background(), approvedEvent("AVB404", "AVO-RC-004", 1))
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestConfirmPaymentSecondConfirmationRejected(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)
	ctx := context.Background()

	fix := seedOrder(t, db, "40022222", "AVBRC22222", "AVO-RC-005", 10, 2, false)

	require.NoError(t, svc.ConfirmPayment(ctx, approvedEvent(fix.orderID, "AVO-RC-005", 2)))

	err := svc.ConfirmPayment(ctx, approvedEvent(fix.orderID, "AVO-RC-005", 2))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	// stock deducted exactly once
	var product models.Product
	require.NoError(t, db.Where("sku = ?", "AVO-RC-005").First(&product).Error)
	assert.Equal(t, 8, product.Stock)
}

func TestConfirmPaymentMissingAddressRollsBack(t *testing.T) {
	db := setupReconcileTestDB(t)
	svc := newEngine(t, db)
	ctx := context.Background()

	fix := seedOrder(t, db, "40033333", "AVBRC33333", "AVO-RC-006", 10, 2, false)
	require.NoError(t, db.Where("user_id = ?", fix.user.ID).Delete(&models.DeliveryAddress{}).Error)

	err := svc.ConfirmPayment(ctx, approvedEvent(fix.orderID, "AVO-RC-006", 2))
	require.Error(t, err)

	// everything rolled back: order still PENDING, stock untouched, no movement
	var order models.Order
	require.NoError(t, db.Where("id = ?", fix.orderID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)

	var product models.Product
	require.NoError(t, db.Where("sku = ?", "AVO-RC-006").First(&product).Error)
	assert.Equal(t, 10, product.Stock)

	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Where("related_order_id = ?", fix.orderID).Count(&count).Error)
	assert.Zero(t, count)
}

package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	"github.com/avoberry/avoberry-backend/pkg/pagination"
)

// Totals carries the persisted output of a pricing computation.
type Totals struct {
	Subtotal        decimal.Decimal
	DiscountApplied bool
	DiscountValue   decimal.Decimal
	DiscountType    enums.DiscountType
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
}

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Upsert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ExistsID(ctx context.Context, id string) (bool, error)
	UpdateTotals(ctx context.Context, id string, totals Totals) error
	UpdateStatus(ctx context.Context, id string, from, to enums.OrderStatus) (bool, error)
	ForceStatus(ctx context.Context, id string, to enums.OrderStatus) error
	UpsertItem(ctx context.Context, item *models.OrderProduct) error
	CreateItems(ctx context.Context, items []models.OrderProduct) error
	UpdateItemPrice(ctx context.Context, orderID, sku string, price decimal.Decimal) error
	ListOpenWithItems(ctx context.Context) ([]models.Order, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// Upsert inserts the order or, when the id already exists, updates the
// mutable columns in place. Re-importing the same id never duplicates rows.
func (r *repository) Upsert(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "status", "discount_applied", "discount_value",
				"discount_type", "shipping_cost", "updated_at",
			}),
		}).
		Omit("Items").
		Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ExistsID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpdateTotals(ctx context.Context, id string, totals Totals) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subtotal":         totals.Subtotal,
			"discount_applied": totals.DiscountApplied,
			"discount_value":   totals.DiscountValue,
			"discount_type":    totals.DiscountType,
			"shipping_cost":    totals.ShippingCost,
			"total":            totals.Total,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// UpdateStatus performs a guarded transition: the row only moves when it is
// still in the expected source state. Returns false when the guard missed.
func (r *repository) UpdateStatus(ctx context.Context, id string, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ForceStatus is the unguarded administrative update.
func (r *repository) ForceStatus(ctx context.Context, id string, to enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertItem adds a line item, or updates quantity and captured price when
// the (order, product) pair already exists.
func (r *repository) UpsertItem(ctx context.Context, item *models.OrderProduct) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "product_sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "quantity", "unit_of_measure_id", "updated_at",
			}),
		}).
		Create(item).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderProduct) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) UpdateItemPrice(ctx context.Context, orderID, sku string, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderProduct{}).
		Where("order_id = ? AND product_sku = ?", orderID, sku).
		Updates(map[string]any{
			"price":      price,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListOpenWithItems returns every PENDING or PROCESSING order with line items
// preloaded, oldest first. Input to the missing-items recompute.
func (r *repository) ListOpenWithItems(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// List returns orders newest first, keyed by (created_at, id) so pages stay
// stable while imports insert new rows.
func (r *repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

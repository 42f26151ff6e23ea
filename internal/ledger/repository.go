package ledger

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
)

// Repository manages the append-only stock movement log and the missing-item
// shortage snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMovements(ctx context.Context, movements []models.StockMovement) error
	ListMovementsByOrder(ctx context.Context, orderID string) ([]models.StockMovement, error)
	ListMovementsBySKU(ctx context.Context, sku string) ([]models.StockMovement, error)
	UpsertMissing(ctx context.Context, item *models.MissingItem) error
	DeleteMissing(ctx context.Context, sku, orderID string) error
	ListMissingByOrder(ctx context.Context, orderID string) ([]models.MissingItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMovements(ctx context.Context, movements []models.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&movements).Error
}

func (r *repository) ListMovementsByOrder(ctx context.Context, orderID string) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("related_order_id = ?", orderID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListMovementsBySKU(ctx context.Context, sku string) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("product_sku = ?", sku).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// UpsertMissing writes the shortage snapshot for one (product, order) pair,
// replacing any previous snapshot instead of appending.
func (r *repository) UpsertMissing(ctx context.Context, item *models.MissingItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_sku"}, {Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stock", "missing_quantity", "updated_at",
			}),
		}).
		Create(item).Error
}

func (r *repository) DeleteMissing(ctx context.Context, sku, orderID string) error {
	return r.db.WithContext(ctx).
		Where("product_sku = ? AND order_id = ?", sku, orderID).
		Delete(&models.MissingItem{}).Error
}

func (r *repository) ListMissingByOrder(ctx context.Context, orderID string) ([]models.MissingItem, error) {
	var items []models.MissingItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_sku ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

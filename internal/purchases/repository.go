package purchases

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
)

// Repository manages sourcing runs and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	CreateItems(ctx context.Context, items []models.PurchaseItem) error
	ExistsID(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Purchase, error)
	UpdateTotals(ctx context.Context, id string, total, profit decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Omit("Items").Create(purchase).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.PurchaseItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ExistsID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) UpdateTotals(ctx context.Context, id string, total, profit decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_amount":     total,
			"estimated_profit": profit,
			"updated_at":       time.Now().UTC(),
		}).Error
}

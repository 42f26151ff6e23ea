package shipments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
)

// Repository manages shipments and the delivery addresses they come from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByOrder(ctx context.Context, orderID string) (*models.Shipment, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	FindLatestAddress(ctx context.Context, userID uuid.UUID) (*models.DeliveryAddress, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) FindByOrder(ctx context.Context, orderID string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindLatestAddress returns the buyer's most recently saved address.
func (r *repository) FindLatestAddress(ctx context.Context, userID uuid.UUID) (*models.DeliveryAddress, error) {
	var address models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

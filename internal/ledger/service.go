package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

// Service exposes ledger bookkeeping beyond plain repository writes.
type Service interface {
	RecordOut(ctx context.Context, tx *gorm.DB, orderID, sku string, qty int, reason string) error
	RecordIn(ctx context.Context, tx *gorm.DB, sku string, qty int, reason string) error
	RecordShortage(ctx context.Context, tx *gorm.DB, sku, orderID string, stock, missing int) error
	RecomputeMissing(ctx context.Context, tx *gorm.DB) error
}

type service struct {
	repo Repository
}

// NewService builds the stock ledger service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordOut appends one OUT movement tied to an order. Quantity zero is a
// no-op: a fully short deduction leaves no movement, only a missing-item row.
func (s *service) RecordOut(ctx context.Context, tx *gorm.DB, orderID, sku string, qty int, reason string) error {
	if qty <= 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	movement := models.StockMovement{
		ID:             uuid.New(),
		ProductSKU:     sku,
		MovementType:   enums.MovementTypeOut,
		Quantity:       qty,
		Reason:         reason,
		RelatedOrderID: &orderID,
	}
	if err := repo.CreateMovements(ctx, []models.StockMovement{movement}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record OUT movement")
	}
	return nil
}

// RecordIn appends one IN movement for sourcing intake.
func (s *service) RecordIn(ctx context.Context, tx *gorm.DB, sku string, qty int, reason string) error {
	if qty <= 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	movement := models.StockMovement{
		ID:           uuid.New(),
		ProductSKU:   sku,
		MovementType: enums.MovementTypeIn,
		Quantity:     qty,
		Reason:       reason,
	}
	if err := repo.CreateMovements(ctx, []models.StockMovement{movement}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record IN movement")
	}
	return nil
}

// RecordShortage snapshots a single capped deduction: the order wanted more
// than the shelf had. Missing must be positive.
func (s *service) RecordShortage(ctx context.Context, tx *gorm.DB, sku, orderID string, stock, missing int) error {
	if missing <= 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	snapshot := &models.MissingItem{
		ID:              uuid.New(),
		ProductSKU:      sku,
		OrderID:         orderID,
		Stock:           stock,
		MissingQuantity: missing,
	}
	if err := repo.UpsertMissing(ctx, snapshot); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record shortage")
	}
	return nil
}

// RecomputeMissing walks every PENDING/PROCESSING order line and snapshots
// missing_quantity = max(0, requested - current_stock) per (product, order).
// Pairs that are no longer short have their snapshot removed. Batch job,
// O(open orders x line items); callers must keep it off the hot checkout path.
func (s *service) RecomputeMissing(ctx context.Context, tx *gorm.DB) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for missing recompute")
	}
	repo := s.repo.WithTx(tx)

	var orders []models.Order
	err := tx.WithContext(ctx).
		Preload("Items").
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}).
		Find(&orders).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open orders")
	}

	skuSet := map[string]struct{}{}
	for _, order := range orders {
		for _, item := range order.Items {
			skuSet[item.ProductSKU] = struct{}{}
		}
	}
	if len(skuSet) == 0 {
		return nil
	}

	skus := make([]string, 0, len(skuSet))
	for sku := range skuSet {
		skus = append(skus, sku)
	}

	var products []models.Product
	err = tx.WithContext(ctx).
		Where("sku IN ?", skus).
		Find(&products).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stocks")
	}
	stockBySKU := make(map[string]int, len(products))
	for _, product := range products {
		stockBySKU[product.SKU] = product.Stock
	}

	for _, order := range orders {
		for _, item := range order.Items {
			stock, known := stockBySKU[item.ProductSKU]
			if !known {
				continue
			}
			missing := item.Quantity - stock
			if missing <= 0 {
				if err := repo.DeleteMissing(ctx, item.ProductSKU, order.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear missing item")
				}
				continue
			}
			snapshot := &models.MissingItem{
				ID:              uuid.New(),
				ProductSKU:      item.ProductSKU,
				OrderID:         order.ID,
				Stock:           stock,
				MissingQuantity: missing,
			}
			if err := repo.UpsertMissing(ctx, snapshot); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert missing item")
			}
		}
	}
	return nil
}

package shipments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

// Service creates shipments for confirmed orders.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID string, customerID uuid.UUID) (*models.Shipment, error)
}

type service struct {
	repo Repository
}

// NewService builds the shipments service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	return &service{repo: repo}, nil
}

// CreateForOrder snapshots the buyer's latest delivery address into a new
// shipment. A missing address is an error so the caller's transaction rolls
// the whole confirmation back; a duplicate shipment is rejected before any
// write.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, orderID string, customerID uuid.UUID) (*models.Shipment, error) {
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	exists, err := repo.ExistsForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing shipment")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a shipment")
	}

	address, err := repo.FindLatestAddress(ctx, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "buyer has no delivery address")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery address")
	}

	shipment := &models.Shipment{
		ID:         uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Address:    address.Street,
		City:       address.City,
		ZipCode:    address.ZipCode,
	}
	if err := repo.Create(ctx, shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
	}
	return shipment, nil
}

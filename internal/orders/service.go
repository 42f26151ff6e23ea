package orders

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/pagination"
)

// Page is one cursor page of orders.
type Page struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Service exposes the administrative order operations. Payment-driven
// transitions live in the reconciliation engine, not here.
type Service interface {
	ForceStatus(ctx context.Context, orderID string, status enums.OrderStatus) error
	ListOrders(ctx context.Context, params pagination.Params) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService builds the admin order service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

// ForceStatus applies an administrative override. Only CANCELLED and ON_HOLD
// may be forced; PROCESSING is reachable exclusively through payment
// confirmation.
func (s *service) ForceStatus(ctx context.Context, orderID string, status enums.OrderStatus) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if status != enums.OrderStatusCancelled && status != enums.OrderStatusOnHold {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only CANCELLED or ON_HOLD may be forced")
	}

	if err := s.repo.ForceStatus(ctx, orderID, status); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "force order status")
	}
	return nil
}

// ListOrders returns a cursor page of orders, newest first.
func (s *service) ListOrders(ctx context.Context, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &Page{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	if page.Orders == nil {
		page.Orders = []models.Order{}
	}
	return page, nil
}

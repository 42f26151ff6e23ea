package reconcile

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
)

// Repository persists gateway payment confirmations, one row per order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertPayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertPayment inserts or refreshes the payment attached to an order.
// Gateway retries re-deliver the same confirmation; the second write lands on
// the same row.
func (r *repository) UpsertPayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"gateway_payment_id", "external_reference", "status",
				"status_detail", "amount", "net_amount", "taxes_amount",
				"currency_id", "method", "paid_at", "updated_at",
			}),
		}).
		Create(payment).Error
}

func (r *repository) FindPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

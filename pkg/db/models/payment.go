package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/pkg/enums"
)

// Payment is the gateway confirmation attached to an order, one per order.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           string              `gorm:"column:order_id;size:20;not null;uniqueIndex"`
	GatewayPaymentID  *int64              `gorm:"column:gateway_payment_id;uniqueIndex"`
	ExternalReference string              `gorm:"column:external_reference;not null;default:''"`
	Status            enums.PaymentStatus `gorm:"column:status;not null;default:'PENDING'"`
	StatusDetail      string              `gorm:"column:status_detail;not null;default:''"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	NetAmount         decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null;default:0"`
	TaxesAmount       decimal.Decimal     `gorm:"column:taxes_amount;type:numeric(12,2);not null;default:0"`
	CurrencyID        string              `gorm:"column:currency_id;not null;default:'COP'"`
	Method            enums.PaymentMethod `gorm:"column:method;not null;default:'ACCOUNT_MONEY'"`
	PaidAt            time.Time           `gorm:"column:paid_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is a sourcing run: inbound stock bought from suppliers.
type Purchase struct {
	ID                   string          `gorm:"column:id;primaryKey;size:50"`
	PurchasedByID        *uuid.UUID      `gorm:"column:purchased_by_id;type:uuid"`
	PurchaseDate         *time.Time      `gorm:"column:purchase_date"`
	TotalAmount          decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	GlobalSellPercentage float64         `gorm:"column:global_sell_percentage;not null;default:10"`
	EstimatedProfit      decimal.Decimal `gorm:"column:estimated_profit;type:numeric(12,2);not null;default:0"`
	Items                []PurchaseItem  `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseItem records one product line inside a sourcing run.
type PurchaseItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID      string          `gorm:"column:purchase_id;size:50;not null"`
	ProductSKU      string          `gorm:"column:product_sku;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	PurchasePrice   decimal.Decimal `gorm:"column:purchase_price;type:numeric(12,2);not null"`
	SellPercentage  *float64        `gorm:"column:sell_percentage"`
	UnitOfMeasureID *int64          `gorm:"column:unit_of_measure_id"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Subtotal is the purchase cost of this line.
func (p PurchaseItem) Subtotal() decimal.Decimal {
	return p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// EffectiveSellPercentage uses the item override when set, otherwise the
// purchase-wide percentage.
func (p PurchaseItem) EffectiveSellPercentage(purchase *Purchase) float64 {
	if p.SellPercentage != nil {
		return *p.SellPercentage
	}
	if purchase != nil {
		return purchase.GlobalSellPercentage
	}
	return 0
}

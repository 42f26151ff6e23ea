package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avoberry/avoberry-backend/pkg/enums"
)

// StockMovement is an append-only audit entry. Rows are immutable once
// written; Product.Stock remains the source of truth for current levels.
type StockMovement struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductSKU     string             `gorm:"column:product_sku;not null;index"`
	MovementType   enums.MovementType `gorm:"column:movement_type;not null"`
	Quantity       int                `gorm:"column:quantity;not null"`
	Reason         string             `gorm:"column:reason;not null"`
	RelatedOrderID *string            `gorm:"column:related_order_id;size:20"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// MissingItem snapshots a shortage for one (product, order) pair. Recomputes
// upsert against the same pair instead of appending duplicates.
type MissingItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductSKU      string    `gorm:"column:product_sku;not null;uniqueIndex:idx_missing_product_order"`
	OrderID         string    `gorm:"column:order_id;size:20;not null;uniqueIndex:idx_missing_product_order"`
	Stock           int       `gorm:"column:stock;not null;default:0"`
	MissingQuantity int       `gorm:"column:missing_quantity;not null;default:0"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

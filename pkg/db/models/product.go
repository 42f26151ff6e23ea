package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the canonical catalog listing. Stock is the source of truth for
// availability; the stock ledger only records how it got there.
type Product struct {
	SKU             string           `gorm:"column:sku;primaryKey"`
	Name            string           `gorm:"column:name;not null"`
	Description     string           `gorm:"column:description"`
	Price           decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	PurchasePrice   *decimal.Decimal `gorm:"column:purchase_price;type:numeric(12,2)"`
	Stock           int              `gorm:"column:stock;not null;default:0"`
	BestSeller      bool             `gorm:"column:best_seller;not null;default:false"`
	UnitOfMeasureID *int64           `gorm:"column:unit_of_measure_id"`
	UnitOfMeasure   *UnitOfMeasure   `gorm:"foreignKey:UnitOfMeasureID"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// UnitOfMeasure describes how a product is packaged and sold.
type UnitOfMeasure struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Unity  string `gorm:"column:unity;not null"`
	Weight int    `gorm:"column:weight;not null"`
}

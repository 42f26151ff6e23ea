package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/pkg/enums"
)

// Order is the customer order aggregate. The primary key is a generated
// business code ("AVB" + two letters + the last digits of the buyer's DNI).
// Outside of CANCELLED/FAILED, Total == Subtotal - DiscountValue + ShippingCost.
type Order struct {
	ID              string             `gorm:"column:id;primaryKey;size:20"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	User            *User              `gorm:"foreignKey:UserID"`
	Status          enums.OrderStatus  `gorm:"column:status;not null;default:'PENDING'"`
	Subtotal        decimal.Decimal    `gorm:"column:subtotal;type:numeric(10,2);not null;default:0"`
	DiscountApplied bool               `gorm:"column:discount_applied;not null;default:false"`
	DiscountValue   decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null;default:0"`
	DiscountType    enums.DiscountType `gorm:"column:discount_type;not null;default:'NONE'"`
	ShippingCost    decimal.Decimal    `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0"`
	Total           decimal.Decimal    `gorm:"column:total;type:numeric(10,2);not null;default:0"`
	Items           []OrderProduct     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderProduct is a line item with the unit price captured at add time.
// One row per (order, product); re-adding the same product updates quantity.
type OrderProduct struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         string          `gorm:"column:order_id;size:20;not null;uniqueIndex:idx_order_product"`
	ProductSKU      string          `gorm:"column:product_sku;not null;uniqueIndex:idx_order_product"`
	Product         *Product        `gorm:"foreignKey:ProductSKU"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitOfMeasureID *int64          `gorm:"column:unit_of_measure_id"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

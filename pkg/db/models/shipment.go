package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAddress is a saved address the buyer picked at checkout.
type DeliveryAddress struct {
	ID      int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Street  string    `gorm:"column:street;not null"`
	City    string    `gorm:"column:city;not null"`
	ZipCode string    `gorm:"column:zip_code;not null"`
}

// Shipment ties a confirmed order to its delivery address, one per order.
type Shipment struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    string    `gorm:"column:order_id;size:20;not null;uniqueIndex"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	Address    string    `gorm:"column:address;not null"`
	City       string    `gorm:"column:city;not null"`
	ZipCode    string    `gorm:"column:zip_code;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the buyer identity the reconciliation flow resolves by national ID.
// Authentication and profile management live elsewhere.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DNI       string    `gorm:"column:dni;not null;uniqueIndex"`
	Username  string    `gorm:"column:username;not null"`
	Email     string    `gorm:"column:email;not null"`
	FirstName string    `gorm:"column:first_name"`
	LastName  string    `gorm:"column:last_name"`
	Phone     string    `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

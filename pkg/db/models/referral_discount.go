package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralDiscount grants a user a single-use 10% discount. Applying it
// clears the flag and expiry so it can never apply twice.
type ReferralDiscount struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	HasDiscount bool       `gorm:"column:has_discount;not null;default:false"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Usable reports whether the discount can still be applied at the given time.
func (r *ReferralDiscount) Usable(now time.Time) bool {
	if r == nil {
		return false
	}
	return r.HasDiscount && r.ExpiresAt != nil && r.ExpiresAt.After(now)
}

package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
)

// Repository defines persistence operations for buyer identities and their
// referral discounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByDNI(ctx context.Context, dni string) (*models.User, error)
	FindReferralDiscount(ctx context.Context, userID uuid.UUID) (*models.ReferralDiscount, error)
	ConsumeReferralDiscount(ctx context.Context, userID uuid.UUID) error
	CountOrders(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByDNI(ctx context.Context, dni string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("dni = ?", dni).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindReferralDiscount(ctx context.Context, userID uuid.UUID) (*models.ReferralDiscount, error) {
	var discount models.ReferralDiscount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// ConsumeReferralDiscount clears the discount flag and expiry so a second
// apply attempt finds nothing usable.
func (r *repository) ConsumeReferralDiscount(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferralDiscount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"has_discount": false,
			"expires_at":   nil,
			"updated_at":   time.Now().UTC(),
		}).Error
}

// CountOrders counts every order the user has ever placed, regardless of
// status. Zero means the next confirmed order is a first purchase.
func (r *repository) CountOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
)

func usableDiscount(now time.Time) *models.ReferralDiscount {
	expires := now.Add(48 * time.Hour)
	return &models.ReferralDiscount{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		HasDiscount: true,
		ExpiresAt:   &expires,
	}
}

func TestComputeFirstPurchaseDiscount(t *testing.T) {
	now := time.Now()
	result := Compute(Input{
		Items: []LineItem{
			{SKU: "P1", UnitPrice: decimal.NewFromInt(100), Quantity: 3},
		},
		Discount:        usableDiscount(now),
		IsFirstPurchase: true,
		ShippingBase:    decimal.NewFromInt(8000),
		Now:             now,
	})

	assert.True(t, result.DiscountApplied)
	assert.Equal(t, enums.DiscountTypeFirstPurchase, result.DiscountType)
	assert.Equal(t, "300", result.Subtotal.String())
	assert.Equal(t, "30", result.DiscountValue.String())
	assert.True(t, result.ShippingCost.IsZero())
	assert.Equal(t, "270", result.Total.String())
	// 100 * (300-30)/300 = 90
	assert.Equal(t, "90", result.Items[0].UnitPrice.String())
}

func TestComputeReferralDiscountWithShipping(t *testing.T) {
	now := time.Now()
	result := Compute(Input{
		Items: []LineItem{
			{SKU: "P1", UnitPrice: decimal.NewFromFloat(2500.50), Quantity: 2},
			{SKU: "P2", UnitPrice: decimal.NewFromInt(1000), Quantity: 1},
		},
		Discount:        usableDiscount(now),
		IsFirstPurchase: false,
		ShippingBase:    decimal.NewFromInt(8000),
		Now:             now,
	})

	assert.True(t, result.DiscountApplied)
	assert.Equal(t, enums.DiscountTypeReferral, result.DiscountType)
	assert.Equal(t, "6001", result.Subtotal.String())
	assert.Equal(t, "600.1", result.DiscountValue.String())
	assert.Equal(t, "8000", result.ShippingCost.String())
	assert.Equal(t, "13400.9", result.Total.String())
}

func TestComputeNoDiscount(t *testing.T) {
	result := Compute(Input{
		Items: []LineItem{
			{SKU: "P1", UnitPrice: decimal.NewFromInt(50), Quantity: 4},
		},
		ShippingBase: decimal.NewFromInt(8000),
	})

	assert.False(t, result.DiscountApplied)
	assert.Equal(t, enums.DiscountTypeNone, result.DiscountType)
	assert.Equal(t, "200", result.Subtotal.String())
	assert.True(t, result.DiscountValue.IsZero())
	assert.Equal(t, "8200", result.Total.String())
	// prices untouched without a discount
	assert.Equal(t, "50", result.Items[0].UnitPrice.String())
}

func TestComputeExpiredDiscountIgnored(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	discount := &models.ReferralDiscount{
		HasDiscount: true,
		ExpiresAt:   &expired,
	}

	result := Compute(Input{
		Items:        []LineItem{{SKU: "P1", UnitPrice: decimal.NewFromInt(100), Quantity: 1}},
		Discount:     discount,
		ShippingBase: decimal.NewFromInt(8000),
		Now:          now,
	})

	assert.False(t, result.DiscountApplied)
	assert.Equal(t, "8100", result.Total.String())
}

func TestComputeConsumedDiscountIgnored(t *testing.T) {
	// second apply attempt sees has_discount=false
	result := Compute(Input{
		Items:        []LineItem{{SKU: "P1", UnitPrice: decimal.NewFromInt(100), Quantity: 1}},
		Discount:     &models.ReferralDiscount{HasDiscount: false},
		ShippingBase: decimal.NewFromInt(8000),
	})

	assert.False(t, result.DiscountApplied)
	assert.True(t, result.DiscountValue.IsZero())
}

func TestComputeEmptyCart(t *testing.T) {
	result := Compute(Input{
		ShippingBase: decimal.NewFromInt(8000),
	})

	assert.True(t, result.Subtotal.IsZero())
	assert.False(t, result.DiscountApplied)
	assert.Equal(t, "8000", result.Total.String())
}

func TestComputeZeroSubtotalWithDiscountSkipsRescale(t *testing.T) {
	now := time.Now()
	result := Compute(Input{
		Items:        []LineItem{{SKU: "FREE", UnitPrice: decimal.Zero, Quantity: 3}},
		Discount:     usableDiscount(now),
		ShippingBase: decimal.NewFromInt(8000),
		Now:          now,
	})

	assert.True(t, result.DiscountApplied)
	assert.True(t, result.DiscountValue.IsZero())
	assert.True(t, result.Items[0].UnitPrice.IsZero())
	assert.Equal(t, "8000", result.Total.String())
}

func TestComputeNilDiscount(t *testing.T) {
	result := Compute(Input{
		Items:        []LineItem{{SKU: "P1", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		Discount:     nil,
		ShippingBase: decimal.NewFromInt(8000),
	})
	assert.False(t, result.DiscountApplied)
}

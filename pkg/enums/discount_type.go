package enums

import "fmt"

// DiscountType identifies the promotion applied to an order, if any.
type DiscountType string

const (
	DiscountTypeReferral      DiscountType = "REFERRAL"
	DiscountTypeFirstPurchase DiscountType = "FIRST_PURCHASE"
	DiscountTypeCoupon        DiscountType = "COUPON"
	DiscountTypeSeasonal      DiscountType = "SEASONAL"
	DiscountTypeNone          DiscountType = "NONE"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeReferral,
	DiscountTypeFirstPurchase,
	DiscountTypeCoupon,
	DiscountTypeSeasonal,
	DiscountTypeNone,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}

package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
)

var discountRate = decimal.NewFromFloat(0.10)

// LineItem is one order line as captured at add-to-order time. UnitPrice is
// never re-read from the catalog here.
type LineItem struct {
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Input carries everything the resolver needs; it touches no storage.
type Input struct {
	Items           []LineItem
	Discount        *models.ReferralDiscount
	IsFirstPurchase bool
	ShippingBase    decimal.Decimal
	Now             time.Time
}

// Result is the priced order. Items carries the rescaled unit prices when a
// discount applied; DiscountApplied tells the caller to consume the discount
// inside its transaction.
type Result struct {
	Subtotal        decimal.Decimal
	DiscountApplied bool
	DiscountValue   decimal.Decimal
	DiscountType    enums.DiscountType
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	Items           []LineItem
}

// Compute prices an order: subtotal over captured line prices, a single-use
// 10% referral discount when one is active and unexpired, proportional
// line-price rescale, free shipping on the buyer's first purchase. An empty
// item list yields subtotal zero and total equal to shipping, not an error.
func Compute(in Input) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	subtotal := decimal.Zero
	for _, item := range in.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)

	out := Result{
		Subtotal:     subtotal,
		DiscountType: enums.DiscountTypeNone,
		Items:        append([]LineItem(nil), in.Items...),
	}

	if in.Discount.Usable(now) {
		out.DiscountApplied = true
		out.DiscountValue = subtotal.Mul(discountRate).Round(2)
		if in.IsFirstPurchase {
			out.DiscountType = enums.DiscountTypeFirstPurchase
		} else {
			out.DiscountType = enums.DiscountTypeReferral
		}

		// subtotal = 0 would divide by zero; nothing to rescale anyway
		if subtotal.IsPositive() {
			factor := subtotal.Sub(out.DiscountValue).Div(subtotal)
			for i := range out.Items {
				out.Items[i].UnitPrice = out.Items[i].UnitPrice.Mul(factor).Round(2)
			}
		}
	}

	if in.IsFirstPurchase {
		out.ShippingCost = decimal.Zero
	} else {
		out.ShippingCost = in.ShippingBase.Round(2)
	}

	out.Total = subtotal.Sub(out.DiscountValue).Add(out.ShippingCost).Round(2)
	return out
}

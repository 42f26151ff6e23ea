package bulkimport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

// ValidOrder is one Orders row with every cell parsed. Key is the raw
// order_id cell, kept as the join key for item rows; blank means a fresh
// id gets generated at apply time.
type ValidOrder struct {
	Line            int
	Key             string
	UserDNI         string
	Status          enums.OrderStatus
	DiscountApplied bool
	DiscountType    enums.DiscountType
	DiscountValue   decimal.Decimal
	ShippingCost    *decimal.Decimal
}

// ValidItem is one OrderProduct row with every cell parsed. OrderKey joins
// back to a ValidOrder's Key, never directly to the database.
type ValidItem struct {
	Line            int
	OrderKey        string
	ProductSKU      string
	Price           decimal.Decimal
	Quantity        int
	UnitOfMeasureID *int64
}

// ValidFile is a workbook that passed every check.
type ValidFile struct {
	Orders []ValidOrder
	Items  []ValidItem
}

// Validate checks every row of both sheets and aggregates every failure.
// One bad cell anywhere rejects the whole file; nothing is applied until
// the workbook is clean end to end.
func Validate(file *File) (*ValidFile, error) {
	var errs error

	valid := &ValidFile{}
	orderKeys := make(map[string]struct{}, len(file.Orders))

	for _, row := range file.Orders {
		order, rowErr := validateOrderRow(row)
		if rowErr != nil {
			errs = multierr.Append(errs, rowErr)
			continue
		}
		orderKeys[order.Key] = struct{}{}
		valid.Orders = append(valid.Orders, order)
	}

	for _, row := range file.Items {
		item, rowErr := validateItemRow(row, orderKeys)
		if rowErr != nil {
			errs = multierr.Append(errs, rowErr)
			continue
		}
		valid.Items = append(valid.Items, item)
	}

	if errs != nil {
		messages := make([]string, 0, len(multierr.Errors(errs)))
		for _, e := range multierr.Errors(errs) {
			messages = append(messages, e.Error())
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook rejected").WithDetails(messages)
	}

	return valid, nil
}

func validateOrderRow(row OrderRow) (ValidOrder, error) {
	var errs error

	if row.UserDNI == "" || !allDigits(row.UserDNI) {
		errs = multierr.Append(errs, fmt.Errorf("orders row %d: invalid user DNI %q", row.Line, row.UserDNI))
	}

	status, err := enums.ParseOrderStatus(row.Status)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("orders row %d: %v", row.Line, err))
	}

	applied, err := parseBoolCell(row.DiscountApplied)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("orders row %d: invalid discount_applied %q", row.Line, row.DiscountApplied))
	}

	discountType := enums.DiscountTypeNone
	if row.DiscountType != "" {
		discountType, err = enums.ParseDiscountType(row.DiscountType)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("orders row %d: %v", row.Line, err))
		}
	}

	discountValue := decimal.Zero
	if row.DiscountValue != "" {
		discountValue, err = decimal.NewFromString(row.DiscountValue)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("orders row %d: invalid discount_value %q", row.Line, row.DiscountValue))
		}
	}
	if discountValue.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("orders row %d: negative discount_value %s", row.Line, discountValue))
	}
	if discountValue.IsPositive() && !applied {
		errs = multierr.Append(errs, fmt.Errorf("orders row %d: discount_value %s without discount_applied", row.Line, discountValue))
	}

	var shipping *decimal.Decimal
	if row.ShippingCost != "" {
		parsed, shipErr := decimal.NewFromString(row.ShippingCost)
		if shipErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("orders row %d: invalid shipping_cost %q", row.Line, row.ShippingCost))
		} else if parsed.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("orders row %d: negative shipping_cost %s", row.Line, parsed))
		} else {
			shipping = &parsed
		}
	}

	if errs != nil {
		return ValidOrder{}, errs
	}

	return ValidOrder{
		Line:            row.Line,
		Key:             row.OrderID,
		UserDNI:         row.UserDNI,
		Status:          status,
		DiscountApplied: applied,
		DiscountType:    discountType,
		DiscountValue:   discountValue,
		ShippingCost:    shipping,
	}, nil
}

func validateItemRow(row ItemRow, orderKeys map[string]struct{}) (ValidItem, error) {
	var errs error

	if _, ok := orderKeys[row.OrderID]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("items row %d: order %q not present in the Orders sheet", row.Line, row.OrderID))
	}

	if row.ProductSKU == "" {
		errs = multierr.Append(errs, fmt.Errorf("items row %d: missing product SKU", row.Line))
	}

	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("items row %d: invalid price %q", row.Line, row.Price))
	} else if price.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("items row %d: negative price %s", row.Line, price))
	}

	quantity, err := strconv.Atoi(row.Quantity)
	if err != nil || quantity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("items row %d: invalid quantity %q", row.Line, row.Quantity))
	}

	var unitID *int64
	if row.UnitID != "" {
		parsed, unitErr := strconv.ParseInt(row.UnitID, 10, 64)
		if unitErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("items row %d: invalid unit id %q", row.Line, row.UnitID))
		} else {
			unitID = &parsed
		}
	}

	if errs != nil {
		return ValidItem{}, errs
	}

	return ValidItem{
		Line:            row.Line,
		OrderKey:        row.OrderID,
		ProductSKU:      row.ProductSKU,
		Price:           price,
		Quantity:        quantity,
		UnitOfMeasureID: unitID,
	}, nil
}

func parseBoolCell(value string) (bool, error) {
	switch strings.ToUpper(value) {
	case "", "FALSE":
		return false, nil
	case "TRUE":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

func allDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

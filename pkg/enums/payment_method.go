package enums

import "fmt"

// PaymentMethod identifies how the buyer paid.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodNequi        PaymentMethod = "NEQUI"
	PaymentMethodAccountMoney PaymentMethod = "ACCOUNT_MONEY"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodDebitCard,
	PaymentMethodCreditCard,
	PaymentMethodBankTransfer,
	PaymentMethodNequi,
	PaymentMethodAccountMoney,
	PaymentMethodOther,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

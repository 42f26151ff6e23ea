package enums

import "fmt"

// PaymentStatus mirrors the state reported by the payment gateway.
type PaymentStatus string

const (
	PaymentStatusApproved    PaymentStatus = "APPROVED"
	PaymentStatusPending     PaymentStatus = "PENDING"
	PaymentStatusInProcess   PaymentStatus = "IN_PROCESS"
	PaymentStatusRejected    PaymentStatus = "REJECTED"
	PaymentStatusCanceled    PaymentStatus = "CANCELED"
	PaymentStatusRefunded    PaymentStatus = "REFUNDED"
	PaymentStatusChargedBack PaymentStatus = "CHARGED_BACK"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusApproved,
	PaymentStatusPending,
	PaymentStatusInProcess,
	PaymentStatusRejected,
	PaymentStatusCanceled,
	PaymentStatusRefunded,
	PaymentStatusChargedBack,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

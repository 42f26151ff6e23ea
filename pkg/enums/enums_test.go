package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("PROCESSING")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OrderStatusProcessing {
		t.Fatalf("unexpected status %s", status)
	}

	if _, err := ParseOrderStatus("processing"); err == nil {
		t.Fatal("statuses are case sensitive at the boundary")
	}
	if _, err := ParseOrderStatus("SHIPPED_MAYBE"); err == nil {
		t.Fatal("unknown status should not parse")
	}
}

func TestOrderStatusIsTerminalForStock(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusCancelled, OrderStatusReturned, OrderStatusFailed} {
		if !status.IsTerminalForStock() {
			t.Fatalf("%s should suppress stock movements", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusDelivered} {
		if status.IsTerminalForStock() {
			t.Fatalf("%s should allow stock movements", status)
		}
	}
}

func TestParseDiscountType(t *testing.T) {
	for _, raw := range []string{"REFERRAL", "FIRST_PURCHASE", "COUPON", "SEASONAL", "NONE"} {
		if _, err := ParseDiscountType(raw); err != nil {
			t.Fatalf("%s should parse: %v", raw, err)
		}
	}
	if DiscountType("BOGO").IsValid() {
		t.Fatal("unknown discount type should be invalid")
	}
}

func TestParseMovementType(t *testing.T) {
	for _, raw := range []string{"IN", "OUT", "ADJUST"} {
		movement, err := ParseMovementType(raw)
		if err != nil {
			t.Fatalf("%s should parse: %v", raw, err)
		}
		if !movement.IsValid() {
			t.Fatalf("%s should be valid", raw)
		}
	}
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("APPROVED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != PaymentStatusApproved {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParsePaymentStatus("SETTLED"); err == nil {
		t.Fatal("unknown payment status should not parse")
	}
}

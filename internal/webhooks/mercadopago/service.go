package mpwebhook

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/internal/reconcile"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/logger"
)

// EventTypePayment is the only notification type this webhook acts on.
const EventTypePayment = "payment"

// Notification is the gateway's webhook body. Only the payment id travels
// in it; everything else comes from a follow-up API lookup.
type Notification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type paymentFetcher interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

type reconciler interface {
	ConfirmPayment(ctx context.Context, event reconcile.PaymentEvent) error
}

type idempotencyGuard interface {
	CheckAndMark(ctx context.Context, notificationID string) (bool, error)
	Delete(ctx context.Context, notificationID string) error
}

type ServiceParams struct {
	Fetcher    paymentFetcher
	Reconciler reconciler
	Guard      idempotencyGuard
	Logger     *logger.Logger
}

// Service turns gateway notifications into reconciliation runs, exactly once
// per payment id.
type Service struct {
	fetcher    paymentFetcher
	reconciler reconciler
	guard      idempotencyGuard
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Fetcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment fetcher required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		fetcher:    params.Fetcher,
		reconciler: params.Reconciler,
		guard:      params.Guard,
		logg:       params.Logger,
	}, nil
}

// HandleNotification processes one webhook delivery. Non-payment events and
// duplicate deliveries return nil so the gateway stops retrying them. The
// idempotency claim survives only a fully applied approved payment: failed
// runs and not-yet-approved statuses release it, because the gateway
// re-notifies status changes under the same payment id and a later approved
// delivery must still reconcile.
func (s *Service) HandleNotification(ctx context.Context, notification Notification) error {
	if notification.Type != EventTypePayment {
		if s.logg != nil {
			s.logg.Info(ctx, "ignoring notification of type "+notification.Type)
		}
		return nil
	}
	paymentID := notification.Data.ID
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id not provided")
	}

	processed, err := s.guard.CheckAndMark(ctx, paymentID)
	if err != nil {
		return err
	}
	if processed {
		if s.logg != nil {
			s.logg.Info(ctx, "notification for payment "+paymentID+" already processed")
		}
		return nil
	}

	payment, err := s.fetcher.GetPayment(ctx, paymentID)
	if err != nil {
		s.release(ctx, paymentID)
		return err
	}

	event := toEvent(payment)
	if event.Status != enums.PaymentStatusApproved {
		if s.logg != nil {
			s.logg.Info(ctx, "payment "+paymentID+" not approved, status "+payment.Status)
		}
		s.release(ctx, paymentID)
		return nil
	}

	if err := s.reconciler.ConfirmPayment(ctx, event); err != nil {
		s.release(ctx, paymentID)
		return err
	}
	return nil
}

func (s *Service) release(ctx context.Context, paymentID string) {
	if err := s.guard.Delete(ctx, paymentID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "release idempotency claim for payment "+paymentID, err)
	}
}

// toEvent maps the gateway payment onto the reconciliation event. Absent
// status and method fall back to the gateway's defaults for approved
// account-money payments.
func toEvent(payment *Payment) reconcile.PaymentEvent {
	status := enums.PaymentStatus(strings.ToUpper(payment.Status))
	if payment.Status == "" {
		status = enums.PaymentStatusApproved
	}
	method := enums.PaymentMethod(strings.ToUpper(payment.PaymentMethodID))
	if !method.IsValid() {
		method = enums.PaymentMethodAccountMoney
	}

	total := payment.TransactionDetails.TotalPaidAmount
	net := payment.TransactionDetails.NetReceivedAmount
	taxes := math.Round((total-net)*100) / 100

	var paidAt time.Time
	if payment.DateApproved != nil {
		paidAt = *payment.DateApproved
	}

	items := make([]reconcile.PaymentItem, 0, len(payment.AdditionalInfo.Items))
	for _, line := range payment.AdditionalInfo.Items {
		items = append(items, reconcile.PaymentItem{SKU: line.ID, Quantity: line.Qty()})
	}

	gatewayID := payment.ID
	return reconcile.PaymentEvent{
		OrderID:           payment.ExternalReference,
		Status:            status,
		StatusDetail:      payment.StatusDetail,
		GatewayPaymentID:  &gatewayID,
		ExternalReference: payment.ExternalReference,
		Amount:            decimal.NewFromFloat(total).Round(2),
		NetAmount:         decimal.NewFromFloat(net).Round(2),
		TaxesAmount:       decimal.NewFromFloat(taxes),
		CurrencyID:        payment.CurrencyID,
		Method:            method,
		PaidAt:            paidAt,
		Items:             items,
	}
}

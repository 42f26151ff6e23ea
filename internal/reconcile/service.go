package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/internal/catalog"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/internal/orders"
	"github.com/avoberry/avoberry-backend/internal/pricing"
	"github.com/avoberry/avoberry-backend/internal/shipments"
	"github.com/avoberry/avoberry-backend/internal/users"
	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/logger"
	"github.com/avoberry/avoberry-backend/pkg/metrics"
)

const saleReason = "SALE"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentItem is one paid line as reported by the gateway. Quantities drive
// stock deduction; pricing always comes from the stored order lines.
type PaymentItem struct {
	SKU      string
	Quantity int
}

// PaymentEvent is the payment confirmation consumed by the engine.
type PaymentEvent struct {
	OrderID           string
	Status            enums.PaymentStatus
	StatusDetail      string
	GatewayPaymentID  *int64
	ExternalReference string
	Amount            decimal.Decimal
	NetAmount         decimal.Decimal
	TaxesAmount       decimal.Decimal
	CurrencyID        string
	Method            enums.PaymentMethod
	PaidAt            time.Time
	Items             []PaymentItem
}

// Config carries the pricing and catalog policy knobs.
type Config struct {
	ShippingFlatRate    decimal.Decimal
	BestSellerThreshold int
}

// Service is the single-order reconciliation engine.
type Service interface {
	ConfirmPayment(ctx context.Context, event PaymentEvent) error
}

type service struct {
	payments  Repository
	orders    orders.Repository
	users     users.Repository
	catalog   catalog.Repository
	ledger    ledger.Service
	shipments shipments.Service
	tx        txRunner
	cfg       Config
	logg      *logger.Logger
	metrics   *metrics.ReconcileMetrics
}

// NewService wires the reconciliation engine.
func NewService(
	payments Repository,
	ordersRepo orders.Repository,
	usersRepo users.Repository,
	catalogRepo catalog.Repository,
	ledgerSvc ledger.Service,
	shipmentsSvc shipments.Service,
	tx txRunner,
	cfg Config,
	logg *logger.Logger,
	m *metrics.ReconcileMetrics,
) (Service, error) {
	if payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if shipmentsSvc == nil {
		return nil, fmt.Errorf("shipments service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cfg.BestSellerThreshold <= 0 {
		cfg.BestSellerThreshold = 20
	}
	return &service{
		payments:  payments,
		orders:    ordersRepo,
		users:     usersRepo,
		catalog:   catalogRepo,
		ledger:    ledgerSvc,
		shipments: shipmentsSvc,
		tx:        tx,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
	}, nil
}

// ConfirmPayment runs the payment-confirmation path: totals recompute with
// discount consumption, PENDING to PROCESSING, capped per-SKU deduction with
// OUT movements and shortage snapshots, best-seller refresh, shipment
// creation. Steps run inside one transaction; any failure leaves the order
// PENDING with no stock touched.
func (s *service) ConfirmPayment(ctx context.Context, event PaymentEvent) error {
	start := time.Now()
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, event.OrderID)
	}

	if event.Status != enums.PaymentStatusApproved {
		if s.logg != nil {
			s.logg.Info(ctx, fmt.Sprintf("ignoring payment event with status %s", event.Status))
		}
		return nil
	}
	if event.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.confirmInTx(ctx, tx, event)
	})

	if s.metrics != nil {
		s.metrics.ObserveDuration("webhook", time.Since(start))
		if err != nil {
			s.metrics.IncFailure("webhook")
		} else {
			s.metrics.IncSuccess("webhook")
		}
	}
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "payment confirmation failed", err)
	}
	return err
}

func (s *service) confirmInTx(ctx context.Context, tx *gorm.DB, event PaymentEvent) error {
	ordersRepo := s.orders.WithTx(tx)
	usersRepo := s.users.WithTx(tx)
	catalogRepo := s.catalog.WithTx(tx)

	order, err := ordersRepo.FindByID(ctx, event.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := s.upsertPayment(ctx, tx, order, event); err != nil {
		return err
	}

	totals, rescaled, consumed, err := s.priceOrder(ctx, tx, order)
	if err != nil {
		return err
	}
	if consumed {
		if err := usersRepo.ConsumeReferralDiscount(ctx, order.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume referral discount")
		}
		for sku, price := range rescaled {
			if err := ordersRepo.UpdateItemPrice(ctx, order.ID, sku, price); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist rescaled price")
			}
		}
	}
	if err := ordersRepo.UpdateTotals(ctx, order.ID, totals); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist totals")
	}

	moved, err := ordersRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not PENDING")
	}

	touched := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		if item.Quantity <= 0 {
			continue
		}
		deducted, err := catalogRepo.DeductStock(ctx, item.SKU, item.Quantity)
		if err != nil {
			return err
		}
		if err := s.ledger.RecordOut(ctx, tx, order.ID, item.SKU, deducted, saleReason); err != nil {
			return err
		}
		if deducted < item.Quantity {
			// stock hit zero, record the shortfall instead of failing
			if err := s.ledger.RecordShortage(ctx, tx, item.SKU, order.ID, 0, item.Quantity-deducted); err != nil {
				return err
			}
			if s.metrics != nil {
				s.metrics.IncShortage()
			}
		}
		touched = append(touched, item.SKU)
	}

	if err := catalogRepo.RefreshBestSellers(ctx, touched, s.cfg.BestSellerThreshold); err != nil {
		return err
	}

	if _, err := s.shipments.CreateForOrder(ctx, tx, order.ID, order.UserID); err != nil {
		return err
	}
	return nil
}

func (s *service) upsertPayment(ctx context.Context, tx *gorm.DB, order *models.Order, event PaymentEvent) error {
	paidAt := event.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	method := event.Method
	if method == "" {
		method = enums.PaymentMethodAccountMoney
	}
	currency := event.CurrencyID
	if currency == "" {
		currency = "COP"
	}
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		GatewayPaymentID:  event.GatewayPaymentID,
		ExternalReference: event.ExternalReference,
		Status:            event.Status,
		StatusDetail:      event.StatusDetail,
		Amount:            event.Amount,
		NetAmount:         event.NetAmount,
		TaxesAmount:       event.TaxesAmount,
		CurrencyID:        currency,
		Method:            method,
		PaidAt:            paidAt,
	}
	if err := s.payments.WithTx(tx).UpsertPayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert payment")
	}
	return nil
}

// priceOrder recomputes totals from the stored line items and reports the
// rescaled unit prices plus whether a discount was applied and must be
// consumed.
func (s *service) priceOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (orders.Totals, map[string]decimal.Decimal, bool, error) {
	usersRepo := s.users.WithTx(tx)

	orderCount, err := usersRepo.CountOrders(ctx, order.UserID)
	if err != nil {
		return orders.Totals{}, nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count buyer orders")
	}
	// the order being confirmed is already persisted, so first purchase
	// means no other order exists
	isFirst := orderCount <= 1

	discount, err := usersRepo.FindReferralDiscount(ctx, order.UserID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return orders.Totals{}, nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral discount")
	}

	lineItems := make([]pricing.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, pricing.LineItem{
			SKU:       item.ProductSKU,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		})
	}

	result := pricing.Compute(pricing.Input{
		Items:           lineItems,
		Discount:        discount,
		IsFirstPurchase: isFirst,
		ShippingBase:    s.cfg.ShippingFlatRate,
	})

	totals := orders.Totals{
		Subtotal:        result.Subtotal,
		DiscountApplied: result.DiscountApplied,
		DiscountValue:   result.DiscountValue,
		DiscountType:    result.DiscountType,
		ShippingCost:    result.ShippingCost,
		Total:           result.Total,
	}

	rescaled := make(map[string]decimal.Decimal, len(result.Items))
	if result.DiscountApplied {
		for _, item := range result.Items {
			rescaled[item.SKU] = item.UnitPrice
		}
	}
	return totals, rescaled, result.DiscountApplied, nil
}

package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/internal/catalog"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/internal/orders"
	"github.com/avoberry/avoberry-backend/internal/users"
	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/logger"
	"github.com/avoberry/avoberry-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config carries the bulk path policy knobs.
type Config struct {
	ShippingFlatRate decimal.Decimal
}

// Result reports how many orders and line items the import touched.
type Result struct {
	Orders int `json:"orders"`
	Items  int `json:"items"`
}

// Service ingests a two-sheet workbook of orders and line items.
type Service interface {
	Import(ctx context.Context, r io.Reader) (*Result, error)
}

type service struct {
	orders  orders.Repository
	users   users.Repository
	catalog catalog.Repository
	ledger  ledger.Service
	gen     *orders.Generator
	tx      txRunner
	cfg     Config
	logg    *logger.Logger
	metrics *metrics.ReconcileMetrics
}

// NewService wires the bulk import path.
func NewService(
	ordersRepo orders.Repository,
	usersRepo users.Repository,
	catalogRepo catalog.Repository,
	ledgerSvc ledger.Service,
	gen *orders.Generator,
	tx txRunner,
	cfg Config,
	logg *logger.Logger,
	m *metrics.ReconcileMetrics,
) (Service, error) {
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
	if gen == nil {
		return nil, fmt.Errorf("order id generator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		orders:  ordersRepo,
		users:   usersRepo,
		catalog: catalogRepo,
		ledger:  ledgerSvc,
		gen:     gen,
		tx:      tx,
		cfg:     cfg,
		logg:    logg,
		metrics: m,
	}, nil
}

// Import runs parse, validate, apply. Validation is all-or-nothing and the
// apply phase runs inside a single transaction, so a failure anywhere leaves
// the database exactly as it was.
func (s *service) Import(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()

	file, err := Parse(r)
	if err != nil {
		s.observe(start, err)
		return nil, err
	}

	valid, err := Validate(file)
	if err != nil {
		s.observe(start, err)
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, txErr := s.applyInTx(ctx, tx, valid)
		if txErr != nil {
			return txErr
		}
		result = applied
		return nil
	})
	s.observe(start, err)
	if err != nil {
		s.warn(ctx, "bulk import rolled back: "+err.Error())
		return nil, err
	}

	s.info(ctx, fmt.Sprintf("bulk import applied %d orders and %d items", result.Orders, result.Items))
	return result, nil
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration("bulk", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("bulk")
	} else {
		s.metrics.IncSuccess("bulk")
	}
}

func (s *service) applyInTx(ctx context.Context, tx *gorm.DB, file *ValidFile) (*Result, error) {
	ordersRepo := s.orders.WithTx(tx)
	usersRepo := s.users.WithTx(tx)
	catalogRepo := s.catalog.WithTx(tx)

	products, err := loadProducts(ctx, catalogRepo)
	if err != nil {
		return nil, err
	}
	units, err := loadUnits(ctx, catalogRepo)
	if err != nil {
		return nil, err
	}

	// Sheet key -> persisted order id. A blank key maps to the first order
	// generated for it, so item rows with a blank order_id can still attach.
	finalByKey := make(map[string]string, len(file.Orders))
	touched := make(map[string]*models.Order, len(file.Orders))
	userCache := make(map[string]*models.User)

	for _, row := range file.Orders {
		user, ok := userCache[row.UserDNI]
		if !ok {
			user, err = usersRepo.FindByDNI(ctx, row.UserDNI)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					s.warn(ctx, fmt.Sprintf("skipping order on row %d: no user with DNI %s", row.Line, row.UserDNI))
					continue
				}
				return nil, err
			}
			userCache[row.UserDNI] = user
		}

		finalID := row.Key
		if finalID == "" {
			finalID, err = s.gen.Generate(ctx, user.DNI, func(ctx context.Context, id string) (bool, error) {
				return ordersRepo.ExistsID(ctx, id)
			})
			if err != nil {
				return nil, err
			}
		}

		shipping := s.cfg.ShippingFlatRate
		if row.ShippingCost != nil {
			shipping = *row.ShippingCost
		}

		order := &models.Order{
			ID:              finalID,
			UserID:          user.ID,
			Status:          row.Status,
			DiscountApplied: row.DiscountApplied,
			DiscountValue:   row.DiscountValue,
			DiscountType:    row.DiscountType,
			ShippingCost:    shipping,
		}
		if err := ordersRepo.Upsert(ctx, order); err != nil {
			return nil, err
		}

		if _, seen := finalByKey[row.Key]; !seen {
			finalByKey[row.Key] = finalID
		}
		touched[finalID] = order
	}

	itemsApplied := 0
	deductions := make(map[string]int)

	for _, row := range file.Items {
		finalID, ok := finalByKey[row.OrderKey]
		if !ok {
			// The owning order row was skipped, so its items are too.
			continue
		}
		order := touched[finalID]

		if _, ok := products[row.ProductSKU]; !ok {
			s.warn(ctx, fmt.Sprintf("skipping item on row %d: unknown product %s", row.Line, row.ProductSKU))
			continue
		}

		var unitID *int64
		if row.UnitOfMeasureID != nil {
			if _, ok := units[*row.UnitOfMeasureID]; ok {
				unitID = row.UnitOfMeasureID
			}
		}

		item := &models.OrderProduct{
			ID:              uuid.New(),
			OrderID:         finalID,
			ProductSKU:      row.ProductSKU,
			Price:           row.Price,
			Quantity:        row.Quantity,
			UnitOfMeasureID: unitID,
		}
		if err := ordersRepo.UpsertItem(ctx, item); err != nil {
			return nil, err
		}
		itemsApplied++

		if !order.Status.IsTerminalForStock() {
			reason := fmt.Sprintf("Stock movement by a related order %s", finalID)
			if err := s.ledger.RecordOut(ctx, tx, finalID, row.ProductSKU, row.Quantity, reason); err != nil {
				return nil, err
			}
			deductions[row.ProductSKU] += row.Quantity
		}
	}

	if err := s.recomputeTotals(ctx, ordersRepo, touched); err != nil {
		return nil, err
	}
	if err := s.deductStock(ctx, catalogRepo, deductions); err != nil {
		return nil, err
	}
	if err := s.ledger.RecomputeMissing(ctx, tx); err != nil {
		return nil, err
	}

	return &Result{Orders: len(touched), Items: itemsApplied}, nil
}

// recomputeTotals reloads every touched order with its full line set, so
// pre-existing items count toward the subtotal alongside imported ones.
func (s *service) recomputeTotals(ctx context.Context, ordersRepo orders.Repository, touched map[string]*models.Order) error {
	for id, order := range touched {
		full, err := ordersRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, item := range full.Items {
			subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		subtotal = subtotal.Round(2)

		discount := decimal.Zero
		if order.DiscountApplied {
			discount = order.DiscountValue
		}
		total := subtotal.Sub(discount).Add(order.ShippingCost).Round(2)

		err = ordersRepo.UpdateTotals(ctx, id, orders.Totals{
			Subtotal:        subtotal,
			DiscountApplied: order.DiscountApplied,
			DiscountValue:   order.DiscountValue,
			DiscountType:    order.DiscountType,
			ShippingCost:    order.ShippingCost,
			Total:           total,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// deductStock walks the summed per-SKU quantities in a stable order. Each
// deduction caps at the available stock; the shortfall surfaces through the
// missing-items recompute that follows.
func (s *service) deductStock(ctx context.Context, catalogRepo catalog.Repository, deductions map[string]int) error {
	skus := make([]string, 0, len(deductions))
	for sku := range deductions {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	for _, sku := range skus {
		requested := deductions[sku]
		deducted, err := catalogRepo.DeductStock(ctx, sku, requested)
		if err != nil {
			return err
		}
		if deducted < requested {
			if s.metrics != nil {
				s.metrics.IncShortage()
			}
			s.warn(ctx, fmt.Sprintf("stock short for %s: wanted %d, deducted %d", sku, requested, deducted))
		}
	}
	return nil
}

func loadProducts(ctx context.Context, repo catalog.Repository) (map[string]models.Product, error) {
	list, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Product, len(list))
	for _, p := range list {
		out[p.SKU] = p
	}
	return out, nil
}

func loadUnits(ctx context.Context, repo catalog.Repository) (map[int64]models.UnitOfMeasure, error) {
	list, err := repo.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.UnitOfMeasure, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

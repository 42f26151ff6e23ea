package purchases

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/internal/catalog"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/pkg/db/models"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

const (
	idPrefix       = "COMP-AVB"
	idLetters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idMaxAttempts  = 20
	sourcingReason = "SOURCING"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IntakeItem is one sourced product line in the intake request.
type IntakeItem struct {
	SKU             string
	Quantity        int
	PurchasePrice   decimal.Decimal
	SellPercentage  *float64
	UnitOfMeasureID *int64
}

// IntakeInput captures a full sourcing run.
type IntakeInput struct {
	PurchasedByID        *uuid.UUID
	PurchasedByDNI       string
	PurchaseDate         *time.Time
	GlobalSellPercentage float64
	Items                []IntakeItem
}

// Service records sourcing runs: inbound stock, IN movements, and the
// missing-items recompute that follows every purchase.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*models.Purchase, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	ledger  ledger.Service
	tx      txRunner

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService builds the purchase intake service. The random source feeds
// purchase id generation and is injectable for tests.
func NewService(repo Repository, catalogRepo catalog.Repository, ledgerSvc ledger.Service, tx txRunner, src rand.Source) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		ledger:  ledgerSvc,
		tx:      tx,
		rnd:     rand.New(src),
	}, nil
}

// Intake persists the purchase, increments stock per line with an IN
// movement, recomputes purchase totals, then refreshes the missing-item
// snapshots for every open order. Everything runs in one transaction.
func (s *service) Intake(ctx context.Context, input IntakeInput) (*models.Purchase, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase needs at least one item")
	}
	for i, item := range input.Items {
		if item.SKU == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: sku required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.PurchasePrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: purchase price cannot be negative", i))
		}
	}

	sellPct := input.GlobalSellPercentage
	if sellPct == 0 {
		sellPct = 10
	}

	var created *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)

		for _, item := range input.Items {
			if _, err := catalogRepo.GetBySKU(ctx, item.SKU); err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown product %s", item.SKU))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
		}

		id, err := s.generateID(ctx, repo, input.PurchasedByDNI)
		if err != nil {
			return err
		}

		purchase := &models.Purchase{
			ID:                   id,
			PurchasedByID:        input.PurchasedByID,
			PurchaseDate:         input.PurchaseDate,
			GlobalSellPercentage: sellPct,
		}
		if err := repo.Create(ctx, purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
		}

		items := make([]models.PurchaseItem, 0, len(input.Items))
		for _, in := range input.Items {
			items = append(items, models.PurchaseItem{
				ID:              uuid.New(),
				PurchaseID:      id,
				ProductSKU:      in.SKU,
				Quantity:        in.Quantity,
				PurchasePrice:   in.PurchasePrice,
				SellPercentage:  in.SellPercentage,
				UnitOfMeasureID: in.UnitOfMeasureID,
			})
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase items")
		}

		total := decimal.Zero
		profit := decimal.Zero
		for _, item := range items {
			subtotal := item.Subtotal()
			total = total.Add(subtotal)

			pct := decimal.NewFromFloat(item.EffectiveSellPercentage(purchase))
			profit = profit.Add(subtotal.Mul(pct).Div(decimal.NewFromInt(100)))

			if err := catalogRepo.IncrementStock(ctx, item.ProductSKU, item.Quantity); err != nil {
				return err
			}
			if err := s.ledger.RecordIn(ctx, tx, item.ProductSKU, item.Quantity, sourcingReason); err != nil {
				return err
			}
			if err := catalogRepo.UpdatePurchasePrice(ctx, item.ProductSKU, models.Product{
				PurchasePrice: &item.PurchasePrice,
			}); err != nil {
				return err
			}
		}

		if err := repo.UpdateTotals(ctx, id, total.Round(2), profit.Round(2)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase totals")
		}

		if err := s.ledger.RecomputeMissing(ctx, tx); err != nil {
			return err
		}

		purchase.Items = items
		purchase.TotalAmount = total.Round(2)
		purchase.EstimatedProfit = profit.Round(2)
		created = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// generateID builds "COMP-AVB" + 2 letters + 1 digit + last 4 DNI digits,
// retrying on collision up to idMaxAttempts.
func (s *service) generateID(ctx context.Context, repo Repository, dni string) (string, error) {
	suffix := dni
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	if suffix == "" {
		suffix = "0000"
	}

	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		candidate := idPrefix + s.randomChunk() + suffix

		taken, err := repo.ExistsID(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase id collision")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeGeneration, "exhausted purchase id generation attempts")
}

func (s *service) randomChunk() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string([]byte{
		idLetters[s.rnd.Intn(len(idLetters))],
		idLetters[s.rnd.Intn(len(idLetters))],
		byte('0' + s.rnd.Intn(10)),
	})
}

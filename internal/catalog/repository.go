package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/pkg/db/models"
	"github.com/avoberry/avoberry-backend/pkg/enums"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

// maxDeductAttempts bounds the compare-and-retry loop when concurrent
// deductions keep invalidating the stock read. Each retry re-reads and
// rewrites one row, so the bound is generous: a valid deduction should wait
// out contention rather than fail.
const maxDeductAttempts = 50

// Repository defines persistence operations for the product catalog.
// DeductStock is the single locked-decrement primitive both reconciliation
// paths route through.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	ListUnits(ctx context.Context) ([]models.UnitOfMeasure, error)
	DeductStock(ctx context.Context, sku string, requested int) (int, error)
	IncrementStock(ctx context.Context, sku string, qty int) error
	UpdatePurchasePrice(ctx context.Context, sku string, update models.Product) error
	RefreshBestSellers(ctx context.Context, skus []string, threshold int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Order("sku ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListUnits(ctx context.Context) ([]models.UnitOfMeasure, error) {
	var units []models.UnitOfMeasure
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// DeductStock decrements stock by min(current, requested) and returns the
// amount actually deducted. The UPDATE is guarded on the stock value it read,
// so a concurrent deduction invalidates the write instead of producing a lost
// update; the loop re-reads and retries with a fresh baseline. Stock never
// goes below zero.
func (r *repository) DeductStock(ctx context.Context, sku string, requested int) (int, error) {
	if requested <= 0 {
		return 0, nil
	}

	for attempt := 0; attempt < maxDeductAttempts; attempt++ {
		var row struct{ Stock int }
		err := r.db.WithContext(ctx).
			Model(&models.Product{}).
			Select("stock").
			Where("sku = ?", sku).
			Take(&row).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
		}

		current := row.Stock
		deduct := requested
		if current < deduct {
			deduct = current
		}
		if deduct == 0 {
			return 0, nil
		}

		res := r.db.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE sku = ? AND stock = ?
		`, deduct, sku, current)
		if res.Error != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deduct stock")
		}
		if res.RowsAffected == 1 {
			return deduct, nil
		}
		// lost the race, re-read and retry
	}

	return 0, pkgerrors.New(pkgerrors.CodeConflict, "stock deduction contention exhausted retries")
}

// IncrementStock adds purchased quantity back to the catalog row.
func (r *repository) IncrementStock(ctx context.Context, sku string, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE sku = ?
	`, qty, sku)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// UpdatePurchasePrice stores the latest sourcing cost and derived sale price.
func (r *repository) UpdatePurchasePrice(ctx context.Context, sku string, update models.Product) error {
	values := map[string]any{}
	if update.PurchasePrice != nil {
		values["purchase_price"] = *update.PurchasePrice
	}
	if !update.Price.IsZero() {
		values["price"] = update.Price
	}
	if len(values) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("sku = ?", sku).
		Updates(values)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update purchase price")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// RefreshBestSellers recomputes the best-seller flag for the given SKUs from
// cumulative quantities sold on PROCESSING orders.
func (r *repository) RefreshBestSellers(ctx context.Context, skus []string, threshold int) error {
	if len(skus) == 0 {
		return nil
	}

	type skuSales struct {
		ProductSKU string
		Sold       int
	}
	var sales []skuSales
	err := r.db.WithContext(ctx).
		Model(&models.OrderProduct{}).
		Select("order_products.product_sku AS product_sku, COALESCE(SUM(order_products.quantity), 0) AS sold").
		Joins("JOIN orders ON orders.id = order_products.order_id").
		Where("orders.status = ?", enums.OrderStatusProcessing).
		Where("order_products.product_sku IN ?", skus).
		Group("order_products.product_sku").
		Scan(&sales).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum processing sales")
	}

	soldBySKU := make(map[string]int, len(sales))
	for _, s := range sales {
		soldBySKU[s.ProductSKU] = s.Sold
	}

	for _, sku := range skus {
		best := soldBySKU[sku] >= threshold
		err := r.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("sku = ?", sku).
			Update("best_seller", best).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update best seller flag")
		}
	}
	return nil
}

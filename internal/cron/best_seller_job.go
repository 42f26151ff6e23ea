package cron

import (
	"context"
	"fmt"

	"github.com/avoberry/avoberry-backend/internal/catalog"
)

// BestSellerJob re-evaluates the best-seller flag across the whole catalog
// from quantities sold on PROCESSING orders.
type BestSellerJob struct {
	catalog   catalog.Repository
	threshold int
}

func NewBestSellerJob(catalogRepo catalog.Repository, threshold int) (*BestSellerJob, error) {
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if threshold <= 0 {
		threshold = 20
	}
	return &BestSellerJob{catalog: catalogRepo, threshold: threshold}, nil
}

func (j *BestSellerJob) Name() string { return "best-seller-refresh" }

func (j *BestSellerJob) Run(ctx context.Context) error {
	products, err := j.catalog.ListAll(ctx)
	if err != nil {
		return err
	}
	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.SKU)
	}
	if len(skus) == 0 {
		return nil
	}
	return j.catalog.RefreshBestSellers(ctx, skus, j.threshold)
}

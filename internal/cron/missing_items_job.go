package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/avoberry/avoberry-backend/internal/ledger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MissingItemsJob recomputes the unfulfilled-quantity snapshot for every open
// order. The webhook and bulk paths keep the snapshot current as they run;
// this job repairs any drift from manual stock edits.
type MissingItemsJob struct {
	ledger ledger.Service
	tx     txRunner
}

func NewMissingItemsJob(ledgerSvc ledger.Service, tx txRunner) (*MissingItemsJob, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &MissingItemsJob{ledger: ledgerSvc, tx: tx}, nil
}

func (j *MissingItemsJob) Name() string { return "missing-items-recompute" }

func (j *MissingItemsJob) Run(ctx context.Context) error {
	return j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return j.ledger.RecomputeMissing(ctx, tx)
	})
}

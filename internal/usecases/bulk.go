package usecases

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relops/pickwise/internal/domain"
)

// BulkAnalyzer computes predictions for a whole batch up front, without any
// intervening applies. Each prediction reads three immutable commit states
// and writes no shared state, so the work is fanned out over a bounded
// worker pool; output order is re-imposed from batch positions.
//
// The snapshot is mutation-independent by construction and therefore only
// exact for the first unapplied candidate: every real apply afterwards moves
// the target tip the later predictions were computed against.
type BulkAnalyzer struct {
	predictor *ConflictPredictor
	workers   int
	logger    Logger
}

// NewBulkAnalyzer creates a BulkAnalyzer with the given worker bound.
// A bound of zero or less runs sequentially.
func NewBulkAnalyzer(predictor *ConflictPredictor, workers int, log Logger) *BulkAnalyzer {
	if workers <= 0 {
		workers = 1
	}
	return &BulkAnalyzer{predictor: predictor, workers: workers, logger: log}
}

// Analyze returns one prediction per batch item, in batch order.
func (b *BulkAnalyzer) Analyze(ctx context.Context, batch domain.OrderedBatch) ([]domain.ConflictPrediction, error) {
	if batch.Len() == 0 {
		return nil, nil
	}

	b.logger.Info(ctx, "starting bulk analysis", map[string]interface{}{
		"target":     batch.TargetRef,
		"candidates": batch.Len(),
		"workers":    b.workers,
	})

	out := make([]domain.ConflictPrediction, batch.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, cand := range batch.Items {
		i, cand := i, cand
		g.Go(func() error {
			pred, err := b.predictor.Predict(gctx, cand, batch.TargetRef)
			if err != nil {
				return err
			}
			out[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

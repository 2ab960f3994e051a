package usecases

import (
	"sort"

	"github.com/relops/pickwise/internal/domain"
)

// OrderingEngine sorts resolved candidates into dependency-friendly
// application order. Later trunk commits frequently build on earlier ones,
// so applying in trunk order satisfies implicit dependencies and empirically
// minimizes conflicts.
type OrderingEngine struct{}

// NewOrderingEngine creates an OrderingEngine.
func NewOrderingEngine() *OrderingEngine {
	return &OrderingEngine{}
}

// Order returns candidates sorted ascending by trunk position (oldest in
// trunk first). Identical positions should not occur under a total order,
// but the stable sort breaks such ties by input order for determinism.
// This is a pure sort with no I/O; re-running on the same input is
// idempotent.
func (e *OrderingEngine) Order(targetRef string, candidates []domain.Candidate) domain.OrderedBatch {
	items := make([]domain.Candidate, len(candidates))
	copy(items, candidates)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TrunkPosition < items[j].TrunkPosition
	})
	return domain.OrderedBatch{TargetRef: targetRef, Items: items}
}

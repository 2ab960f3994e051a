package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relops/pickwise/internal/domain"
)

func TestOrderingEngine_Order(t *testing.T) {
	engine := NewOrderingEngine()

	t.Run("sorts ascending by trunk position", func(t *testing.T) {
		candidates := []domain.Candidate{
			{Number: 30, TrunkPosition: 7},
			{Number: 10, TrunkPosition: 2},
			{Number: 20, TrunkPosition: 5},
		}

		batch := engine.Order("release-1.2", candidates)

		assert.Equal(t, "release-1.2", batch.TargetRef)
		require.Equal(t, 3, batch.Len())
		assert.Equal(t, []int{10, 20, 30}, numbers(batch))
	})

	t.Run("ties break by input order", func(t *testing.T) {
		candidates := []domain.Candidate{
			{Number: 2, TrunkPosition: 1},
			{Number: 1, TrunkPosition: 1},
			{Number: 3, TrunkPosition: 0},
		}

		batch := engine.Order("release", candidates)

		assert.Equal(t, []int{3, 2, 1}, numbers(batch))
	})

	t.Run("idempotent and input preserved", func(t *testing.T) {
		candidates := []domain.Candidate{
			{Number: 2, TrunkPosition: 9},
			{Number: 1, TrunkPosition: 3},
		}

		first := engine.Order("release", candidates)
		second := engine.Order("release", first.Items)

		assert.Equal(t, numbers(first), numbers(second))
		// The caller's slice is not reordered.
		assert.Equal(t, 2, candidates[0].Number)
	})

	t.Run("empty input yields empty batch", func(t *testing.T) {
		batch := engine.Order("release", nil)
		assert.Equal(t, 0, batch.Len())
	})
}

func numbers(b domain.OrderedBatch) []int {
	out := make([]int, 0, b.Len())
	for _, c := range b.Items {
		out = append(out, c.Number)
	}
	return out
}

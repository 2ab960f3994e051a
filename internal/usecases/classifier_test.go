package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relops/pickwise/internal/domain"
)

func TestComplexityClassifier_Classify(t *testing.T) {
	c := NewComplexityClassifier(DefaultThresholds())

	tests := []struct {
		name                  string
		files, regions, lines int
		want                  domain.Tier
	}{
		{"no conflicts is clean", 0, 0, 0, domain.TierClean},
		{"single small conflict is simple", 1, 1, 3, domain.TierSimple},
		{"below every moderate cutoff", 2, 4, 19, domain.TierSimple},
		{"file count reaches moderate", 3, 1, 5, domain.TierModerate},
		{"region count reaches moderate", 1, 5, 5, domain.TierModerate},
		{"line count reaches moderate", 1, 1, 20, domain.TierModerate},
		{"file count reaches complex", 10, 1, 5, domain.TierComplex},
		{"region count reaches complex", 1, 10, 5, domain.TierComplex},
		{"line count reaches complex", 1, 1, 100, domain.TierComplex},
		{"one metric alone can force complex", 1, 1, 500, domain.TierComplex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.files, tt.regions, tt.lines))
		})
	}
}

// Growing any metric must never lower the tier.
func TestComplexityClassifier_Monotonic(t *testing.T) {
	c := NewComplexityClassifier(DefaultThresholds())

	probes := []int{0, 1, 2, 3, 5, 9, 10, 20, 99, 100, 150}
	for _, files := range probes {
		for _, regions := range probes {
			for _, lines := range probes {
				base := c.Classify(files, regions, lines)
				assert.GreaterOrEqual(t, c.Classify(files+1, regions, lines), base)
				assert.GreaterOrEqual(t, c.Classify(files, regions+1, lines), base)
				assert.GreaterOrEqual(t, c.Classify(files, regions, lines+1), base)
			}
		}
	}
}

func TestNewComplexityClassifier_NormalizesInvertedCutoffs(t *testing.T) {
	// Moderate cutoffs above their complex counterparts would create a dead
	// band; they are clamped down instead.
	c := NewComplexityClassifier(Thresholds{
		ModerateFiles: 50, ModerateRegions: 50, ModerateLines: 500,
		ComplexFiles: 10, ComplexRegions: 10, ComplexLines: 100,
	})

	assert.Equal(t, domain.TierComplex, c.Classify(10, 0, 1))
	// The clamp collapses the moderate band to the complex cutoffs, so
	// everything below complex stays simple rather than skipping tiers.
	assert.Equal(t, domain.TierSimple, c.Classify(9, 9, 99))
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, domain.TierClean < domain.TierSimple)
	assert.True(t, domain.TierSimple < domain.TierModerate)
	assert.True(t, domain.TierModerate < domain.TierComplex)
}

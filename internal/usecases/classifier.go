package usecases

import "github.com/relops/pickwise/internal/domain"

// Thresholds are the tunable tier cutoffs for the complexity classifier.
// A prediction reaches a tier when any metric meets that tier's cutoff, so
// classification is monotonic in all three inputs as long as each moderate
// cutoff does not exceed its complex counterpart.
type Thresholds struct {
	ModerateFiles   int
	ModerateRegions int
	ModerateLines   int

	ComplexFiles   int
	ComplexRegions int
	ComplexLines   int
}

// DefaultThresholds returns the tier cutoffs tuned on large release batches.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ModerateFiles:   3,
		ModerateRegions: 5,
		ModerateLines:   20,
		ComplexFiles:    10,
		ComplexRegions:  10,
		ComplexLines:    100,
	}
}

// ComplexityClassifier maps aggregate prediction metrics to an ordinal
// severity tier.
type ComplexityClassifier struct {
	t Thresholds
}

// NewComplexityClassifier creates a classifier with the given thresholds.
// Cutoffs are normalized so no moderate threshold exceeds its complex
// counterpart, preserving monotonicity for arbitrary configuration.
func NewComplexityClassifier(t Thresholds) *ComplexityClassifier {
	if t.ModerateFiles > t.ComplexFiles {
		t.ModerateFiles = t.ComplexFiles
	}
	if t.ModerateRegions > t.ComplexRegions {
		t.ModerateRegions = t.ComplexRegions
	}
	if t.ModerateLines > t.ComplexLines {
		t.ModerateLines = t.ComplexLines
	}
	return &ComplexityClassifier{t: t}
}

// Classify maps (files with conflicts, conflicting regions, conflicting
// lines) to a tier. Zero conflicts is clean; more of any metric never
// decreases the tier.
func (c *ComplexityClassifier) Classify(files, regions, lines int) domain.Tier {
	if files <= 0 && regions <= 0 && lines <= 0 {
		return domain.TierClean
	}
	if atLeast(files, c.t.ComplexFiles) || atLeast(regions, c.t.ComplexRegions) || atLeast(lines, c.t.ComplexLines) {
		return domain.TierComplex
	}
	if atLeast(files, c.t.ModerateFiles) || atLeast(regions, c.t.ModerateRegions) || atLeast(lines, c.t.ModerateLines) {
		return domain.TierModerate
	}
	return domain.TierSimple
}

// atLeast guards against zero-valued cutoffs, which would otherwise promote
// every prediction.
func atLeast(v, cutoff int) bool {
	return cutoff > 0 && v >= cutoff
}

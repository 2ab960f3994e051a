// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/relops/pickwise/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Candidate reference patterns, tried in order. The parenthesized form is
// matched greedily and the last occurrence wins, so revert-of-revert messages
// like `Revert "fix: x (#100)" (#200)` resolve to the outer reference, which
// is appended last.
var (
	parenRefPattern   = regexp.MustCompile(`\(#(\d+)\)`)
	mergeRefPattern   = regexp.MustCompile(`Merge pull request #(\d+)`)
	bracketRefPattern = regexp.MustCompile(`^\[(\d+)\]`)
	bareRefPattern    = regexp.MustCompile(`#(\d+)`)
)

// ExtractCandidateNumber extracts the external candidate reference number
// from a commit message. It returns false when the message carries no
// recognizable reference.
func ExtractCandidateNumber(message string) (int, bool) {
	if matches := parenRefPattern.FindAllStringSubmatch(message, -1); len(matches) > 0 {
		return mustAtoi(matches[len(matches)-1][1]), true
	}
	if m := mergeRefPattern.FindStringSubmatch(message); m != nil {
		return mustAtoi(m[1]), true
	}
	if m := bracketRefPattern.FindStringSubmatch(message); m != nil {
		return mustAtoi(m[1]), true
	}
	if m := bareRefPattern.FindStringSubmatch(message); m != nil {
		return mustAtoi(m[1]), true
	}
	return 0, false
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// CandidateRef pairs an external candidate number with an optionally
// previously-recorded commit id from an earlier run.
type CandidateRef struct {
	Number      int
	RecordedSHA string
}

// ChangesetIndexer resolves external candidate identifiers to live commits
// and their trunk-relative positions by walking trunk history within a
// bounded window.
type ChangesetIndexer struct {
	reader   domain.RepositoryReader
	metadata domain.MetadataSource
	window   int
	logger   Logger
}

// NewChangesetIndexer creates a ChangesetIndexer. metadata may be nil, in
// which case candidates carry commit-derived information only. A window of
// zero or less falls back to domain.DefaultSearchWindow.
func NewChangesetIndexer(
	reader domain.RepositoryReader,
	metadata domain.MetadataSource,
	window int,
	log Logger,
) *ChangesetIndexer {
	if window <= 0 {
		window = domain.DefaultSearchWindow
	}
	return &ChangesetIndexer{
		reader:   reader,
		metadata: metadata,
		window:   window,
		logger:   log,
	}
}

// Index resolves each candidate reference against trunk history. Candidates
// that cannot be matched within the search window are excluded and reported
// in the returned warning list; they are not fatal to the batch. A trunk ref
// that does not resolve at all is fatal and surfaced immediately.
func (ix *ChangesetIndexer) Index(
	ctx context.Context,
	trunkRef string,
	refs []CandidateRef,
) ([]domain.Candidate, []error, error) {
	tip, err := ix.reader.ResolveRef(ctx, trunkRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve trunk ref %q: %w", trunkRef, err)
	}

	ix.logger.Debug(ctx, "walking trunk history", map[string]interface{}{
		"trunk":      trunkRef,
		"trunk_tip":  tip,
		"window":     ix.window,
		"candidates": len(refs),
	})

	wanted := make(map[int]*CandidateRef, len(refs))
	for i := range refs {
		wanted[refs[i].Number] = &refs[i]
	}

	// Walk newest-first, remembering the first (most recent) trunk commit per
	// wanted number. Positions count from the oldest walked commit so trunk
	// order sorts ascending.
	type match struct {
		commit  domain.Commit
		walkIdx int
	}
	matched := make(map[int]match, len(refs))
	walked := 0
	err = ix.reader.WalkHistory(ctx, trunkRef, ix.window, func(c domain.Commit) error {
		idx := walked
		walked++
		number, ok := ExtractCandidateNumber(c.Message)
		if !ok {
			return nil
		}
		if _, want := wanted[number]; !want {
			return nil
		}
		if _, seen := matched[number]; seen {
			return nil
		}
		matched[number] = match{commit: c, walkIdx: idx}
		if len(matched) == len(wanted) {
			return domain.ErrStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrStopWalk) {
		return nil, nil, fmt.Errorf("failed to walk trunk history from %q: %w", trunkRef, err)
	}

	var (
		candidates []domain.Candidate
		warnings   []error
	)
	for _, ref := range refs {
		m, ok := matched[ref.Number]
		if !ok {
			warnings = append(warnings, &domain.UnresolvedCandidateError{
				Number:      ref.Number,
				RecordedSHA: ref.RecordedSHA,
				Window:      ix.window,
			})
			continue
		}

		if ref.RecordedSHA != "" && !sameCommit(ref.RecordedSHA, m.commit.ID) {
			ix.logger.Warn(ctx, "recorded sha differs from trunk match, using trunk", map[string]interface{}{
				"candidate":    ref.Number,
				"recorded_sha": ref.RecordedSHA,
				"trunk_sha":    m.commit.ID,
			})
		}

		cand := domain.Candidate{
			Number:        ref.Number,
			Commit:        m.commit,
			TrunkPosition: walked - 1 - m.walkIdx,
		}
		ix.join(ctx, &cand)
		candidates = append(candidates, cand)
	}

	ix.logger.Info(ctx, "resolved candidates", map[string]interface{}{
		"trunk":      trunkRef,
		"resolved":   len(candidates),
		"unresolved": len(warnings),
		"walked":     walked,
	})

	return candidates, warnings, nil
}

// join blends external metadata into the candidate. Metadata failures only
// degrade display information, so they are logged and ignored.
func (ix *ChangesetIndexer) join(ctx context.Context, cand *domain.Candidate) {
	if ix.metadata == nil {
		return
	}
	meta, err := ix.metadata.CandidateMetadata(ctx, cand.Number)
	if err != nil {
		ix.logger.Warn(ctx, "metadata lookup failed", map[string]interface{}{
			"candidate": cand.Number,
			"error":     err.Error(),
		})
		return
	}
	cand.Title = meta.Title
	cand.Author = meta.Author
	cand.Merged = meta.Merged
	cand.HasMetadata = true
}

// sameCommit compares two commit ids, tolerating one being abbreviated.
func sameCommit(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	if len(a) < len(b) {
		return b[:len(a)] == a
	}
	return a[:len(b)] == b
}

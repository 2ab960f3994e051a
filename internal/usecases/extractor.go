package usecases

import (
	"context"
	"fmt"

	"github.com/relops/pickwise/internal/domain"
)

// ChangeExtractor computes the file-level changes a candidate commit
// introduces relative to its first parent.
type ChangeExtractor struct {
	reader domain.RepositoryReader
	logger Logger
}

// NewChangeExtractor creates a ChangeExtractor.
func NewChangeExtractor(reader domain.RepositoryReader, log Logger) *ChangeExtractor {
	return &ChangeExtractor{reader: reader, logger: log}
}

// Extract returns the candidate's file changes and whether the extraction
// fell back to whole-file granularity. Commits with zero parents diff
// against the empty tree; merge commits diff against their first parent but
// lose hunk detail. Both fallbacks flag the eventual prediction as lower
// confidence.
func (e *ChangeExtractor) Extract(ctx context.Context, commit domain.Commit) ([]domain.FileChange, bool, error) {
	switch {
	case commit.IsRoot():
		changes, err := e.reader.Diff(ctx, "", commit.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to diff root commit %s: %w", commit.ShortID(), err)
		}
		e.logger.Debug(ctx, "root commit, using empty-tree diff", map[string]interface{}{
			"commit": commit.ShortID(),
			"files":  len(changes),
		})
		return changes, true, nil

	case commit.IsMerge():
		changes, err := e.reader.Diff(ctx, commit.Parents[0], commit.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to diff merge commit %s: %w", commit.ShortID(), err)
		}
		// A merge has no single parent-relative diff; keep the touched file
		// list but drop hunk detail so each file is treated as wholly changed.
		for i := range changes {
			changes[i].Hunks = nil
		}
		e.logger.Debug(ctx, "merge commit, whole-file fallback", map[string]interface{}{
			"commit": commit.ShortID(),
			"files":  len(changes),
		})
		return changes, true, nil

	default:
		changes, err := e.reader.Diff(ctx, commit.Parents[0], commit.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to diff commit %s against parent %s: %w",
				commit.ShortID(), commit.Parents[0][:domain.ShortIDLen], err)
		}
		return changes, false, nil
	}
}

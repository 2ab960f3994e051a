package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relops/pickwise/internal/domain"
)

const (
	parentID = "parent0000000000000000000000000000000000"
	candID   = "cand000000000000000000000000000000000000"
	tipID    = "tip0000000000000000000000000000000000000"
)

// numberedLines renders n lines "line 1" .. "line n".
func numberedLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

// replaceLines swaps lines [start, start+count) of content for edited text.
func replaceLines(content string, start, count int, edit string) string {
	lines := strings.SplitAfter(content, "\n")
	var b strings.Builder
	for i, l := range lines {
		lineNo := i + 1
		if lineNo == start {
			for j := 0; j < count; j++ {
				fmt.Fprintf(&b, "%s %d\n", edit, j)
			}
		}
		if lineNo >= start && lineNo < start+count {
			continue
		}
		b.WriteString(l)
	}
	return b.String()
}

// modifyScenario builds a reader where the candidate modifies file1.txt lines
// 10-12 on top of parent, and the target carries targetContent.
func modifyScenario(targetContent string) *fakeReader {
	parent := numberedLines(60)
	candContent := replaceLines(parent, 10, 3, "candidate edit")

	return &fakeReader{
		refs: map[string]string{"release": tipID},
		commits: map[string]domain.Commit{
			candID: {ID: candID, Parents: []string{parentID}, Message: "fix: thing (#1)"},
		},
		diffs: map[string][]domain.FileChange{
			parentID + ".." + candID: {{
				Path: "file1.txt",
				Kind: domain.ChangeModified,
				Hunks: []domain.Hunk{{
					Old: domain.LineRange{Start: 10, Lines: 3},
					New: domain.LineRange{Start: 10, Lines: 3},
				}},
			}},
		},
		files: map[string]map[string][]byte{
			parentID: {"file1.txt": []byte(parent)},
			candID:   {"file1.txt": []byte(candContent)},
			tipID:    {"file1.txt": []byte(targetContent)},
		},
	}
}

func candidateFor(reader *fakeReader) domain.Candidate {
	return domain.Candidate{Number: 1, Commit: reader.commits[candID]}
}

func TestConflictPredictor_Predict(t *testing.T) {
	ctx := context.Background()
	parent := numberedLines(60)

	t.Run("undiverged target is clean", func(t *testing.T) {
		reader := modifyScenario(parent)
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.Equal(t, domain.PredictionOK, pred.Status)
		assert.False(t, pred.HasConflicts())
		assert.Equal(t, domain.TierClean, pred.Tier)
		assert.Equal(t, tipID, pred.TargetTip)
	})

	t.Run("abbreviated target tip id", func(t *testing.T) {
		// Readers may resolve refs to abbreviated ids; prediction must not
		// assume full-length hashes.
		reader := modifyScenario(parent)
		reader.refs["release"] = "ab12"
		reader.files["ab12"] = reader.files[tipID]
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.Equal(t, "ab12", pred.TargetTip)
		assert.False(t, pred.HasConflicts())
	})

	t.Run("overlapping divergence conflicts", func(t *testing.T) {
		// Target edited the same lines 10-12 the candidate touches.
		reader := modifyScenario(replaceLines(parent, 10, 3, "target edit"))
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.True(t, pred.HasConflicts())
		require.Len(t, pred.Files, 1)
		fc := pred.Files[0]
		assert.Equal(t, "file1.txt", fc.Path)
		assert.Equal(t, domain.ConflictContent, fc.Kind)
		require.Len(t, fc.Regions, 1)
		assert.Equal(t, 10, fc.Regions[0].Range.Start)
		assert.Equal(t, domain.TierSimple, pred.Tier)
		assert.Equal(t, 1, pred.FileCount)
		assert.Equal(t, 1, pred.RegionCount)
		assert.Positive(t, pred.LineCount)
	})

	t.Run("divergence outside the touched region is clean", func(t *testing.T) {
		reader := modifyScenario(replaceLines(parent, 50, 1, "target edit"))
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.False(t, pred.HasConflicts())
		assert.Equal(t, domain.TierClean, pred.Tier)
	})

	t.Run("candidate modifies a file the target deleted", func(t *testing.T) {
		reader := modifyScenario(parent)
		delete(reader.files[tipID], "file1.txt")
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		require.Len(t, pred.Files, 1)
		assert.Equal(t, domain.ConflictDeleteModify, pred.Files[0].Kind)
	})

	t.Run("candidate deletes a file the target modified", func(t *testing.T) {
		reader := modifyScenario(replaceLines(parent, 10, 3, "target edit"))
		reader.diffs[parentID+".."+candID] = []domain.FileChange{{
			Path: "file1.txt",
			Kind: domain.ChangeDeleted,
		}}
		delete(reader.files[candID], "file1.txt")
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		require.Len(t, pred.Files, 1)
		assert.Equal(t, domain.ConflictModifyDelete, pred.Files[0].Kind)
	})

	t.Run("delete already applied on target is clean", func(t *testing.T) {
		reader := modifyScenario(parent)
		reader.diffs[parentID+".."+candID] = []domain.FileChange{{
			Path: "file1.txt",
			Kind: domain.ChangeDeleted,
		}}
		delete(reader.files[candID], "file1.txt")
		delete(reader.files[tipID], "file1.txt")
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.False(t, pred.HasConflicts())
	})

	t.Run("independent adds with different content conflict", func(t *testing.T) {
		reader := modifyScenario(parent)
		reader.diffs[parentID+".."+candID] = []domain.FileChange{{
			Path: "new.txt",
			Kind: domain.ChangeAdded,
		}}
		reader.files[candID]["new.txt"] = []byte("candidate version\n")
		reader.files[tipID]["new.txt"] = []byte("target version\n")
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		require.Len(t, pred.Files, 1)
		assert.Equal(t, domain.ConflictAddAdd, pred.Files[0].Kind)
	})

	t.Run("identical independent adds are clean", func(t *testing.T) {
		reader := modifyScenario(parent)
		reader.diffs[parentID+".."+candID] = []domain.FileChange{{
			Path: "new.txt",
			Kind: domain.ChangeAdded,
		}}
		reader.files[candID]["new.txt"] = []byte("same content\n")
		reader.files[tipID]["new.txt"] = []byte("same content\n")
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.False(t, pred.HasConflicts())
	})

	t.Run("binary divergence reports a binary conflict", func(t *testing.T) {
		reader := modifyScenario(replaceLines(parent, 10, 3, "target edit"))
		reader.diffs[parentID+".."+candID][0].Binary = true
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		require.Len(t, pred.Files, 1)
		assert.Equal(t, domain.ConflictBinary, pred.Files[0].Kind)
	})

	t.Run("unreadable content makes the prediction unknown", func(t *testing.T) {
		reader := modifyScenario(replaceLines(parent, 10, 3, "target edit"))
		reader.fileErrs = map[string]error{
			parentID + ":file1.txt": errors.New("object store corrupt"),
		}
		pred, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "release")

		require.NoError(t, err)
		assert.Equal(t, domain.PredictionUnknown, pred.Status)
		assert.NotEmpty(t, pred.Reason)
		// Unknown is distinct from clean: no conflict metrics are claimed.
		assert.Zero(t, pred.FileCount)
		assert.Zero(t, pred.RegionCount)
		assert.Zero(t, pred.LineCount)
		assert.Empty(t, pred.Files)
	})

	t.Run("prediction is repeatable for an unchanged tip", func(t *testing.T) {
		reader := modifyScenario(replaceLines(parent, 10, 3, "target edit"))
		predictor := newTestPredictor(reader)

		first, err := predictor.Predict(ctx, candidateFor(reader), "release")
		require.NoError(t, err)
		second, err := predictor.Predict(ctx, candidateFor(reader), "release")
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("unknown target ref is an error", func(t *testing.T) {
		reader := modifyScenario(parent)
		_, err := newTestPredictor(reader).Predict(ctx, candidateFor(reader), "no-such-branch")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRefNotFound)
	})

	t.Run("merge commit falls back to whole-file granularity", func(t *testing.T) {
		// Target diverged at line 50, far from the candidate's hunks. With
		// hunk detail lost for merges, the whole file counts as touched and
		// the divergence conservatively conflicts.
		reader := modifyScenario(replaceLines(parent, 50, 1, "target edit"))
		merge := reader.commits[candID]
		merge.Parents = []string{parentID, "otherparent0000000000000000000000000000"}
		reader.commits[candID] = merge

		pred, err := newTestPredictor(reader).Predict(ctx, domain.Candidate{Number: 1, Commit: merge}, "release")

		require.NoError(t, err)
		assert.True(t, pred.LowConfidence)
		assert.True(t, pred.HasConflicts())
	})

	t.Run("root commit diffs against the empty tree", func(t *testing.T) {
		root := domain.Commit{ID: candID, Message: "initial (#1)"}
		reader := &fakeReader{
			refs:    map[string]string{"release": tipID},
			commits: map[string]domain.Commit{candID: root},
			diffs: map[string][]domain.FileChange{
				".." + candID: {{Path: "new.txt", Kind: domain.ChangeAdded}},
			},
			files: map[string]map[string][]byte{
				candID: {"new.txt": []byte("hello\n")},
				tipID:  {},
			},
		}

		pred, err := newTestPredictor(reader).Predict(ctx, domain.Candidate{Number: 1, Commit: root}, "release")

		require.NoError(t, err)
		assert.True(t, pred.LowConfidence)
		assert.False(t, pred.HasConflicts())
	})
}

func TestDiffSpans(t *testing.T) {
	t.Run("identical texts yield no spans", func(t *testing.T) {
		assert.Empty(t, diffSpans("a\nb\n", "a\nb\n"))
	})

	t.Run("replacement collapses to one span", func(t *testing.T) {
		parent := numberedLines(20)
		target := replaceLines(parent, 5, 2, "edit")

		spans := diffSpans(parent, target)

		require.Len(t, spans, 1)
		assert.Equal(t, 5, spans[0].rng.Start)
		assert.Equal(t, 2, spans[0].rng.Lines)
		assert.Equal(t, 4, spans[0].lines)
	})

	t.Run("distant edits stay separate spans", func(t *testing.T) {
		parent := numberedLines(30)
		target := replaceLines(replaceLines(parent, 20, 1, "late"), 3, 1, "early")

		spans := diffSpans(parent, target)

		require.Len(t, spans, 2)
		assert.Equal(t, 3, spans[0].rng.Start)
		assert.Equal(t, 20, spans[1].rng.Start)
	})

	t.Run("pure insertion is a zero-length range", func(t *testing.T) {
		parent := "a\nb\n"
		target := "a\nnew\nb\n"

		spans := diffSpans(parent, target)

		require.Len(t, spans, 1)
		assert.Equal(t, 0, spans[0].rng.Lines)
		assert.Equal(t, 1, spans[0].lines)
	})
}

func TestLineCount(t *testing.T) {
	assert.Equal(t, 0, lineCount(nil))
	assert.Equal(t, 2, lineCount([]byte("a\nb\n")))
	assert.Equal(t, 2, lineCount([]byte("a\nb")))
}

package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/relops/pickwise/internal/domain"
)

// ConflictPredictor performs the three-point comparison (parent state ->
// candidate state -> target state) per changed file to predict merge
// conflicts without mutating any repository state.
//
// This is a static approximation of a three-way text merge, not a full merge
// algorithm: it predicts conflict existence and extent, and a prediction of
// "no conflict" is not a guarantee.
type ConflictPredictor struct {
	reader     domain.RepositoryReader
	extractor  *ChangeExtractor
	classifier *ComplexityClassifier
	logger     Logger
}

// NewConflictPredictor creates a ConflictPredictor.
func NewConflictPredictor(
	reader domain.RepositoryReader,
	extractor *ChangeExtractor,
	classifier *ComplexityClassifier,
	log Logger,
) *ConflictPredictor {
	return &ConflictPredictor{
		reader:     reader,
		extractor:  extractor,
		classifier: classifier,
		logger:     log,
	}
}

// Predict computes the conflict prediction for one candidate against the
// current tip of targetRef. The result is a pure function of the three
// immutable commit states involved; calling it twice with an unchanged
// target tip yields identical output.
//
// An unreadable file at any required commit makes the whole candidate's
// prediction unknown (reported distinctly from clean, excluded from
// complexity aggregation) rather than failing the call. Errors are reserved
// for the repository itself being unusable.
func (p *ConflictPredictor) Predict(
	ctx context.Context,
	cand domain.Candidate,
	targetRef string,
) (domain.ConflictPrediction, error) {
	tip, err := p.reader.ResolveRef(ctx, targetRef)
	if err != nil {
		return domain.ConflictPrediction{}, fmt.Errorf("failed to resolve target ref %q: %w", targetRef, err)
	}

	pred := domain.ConflictPrediction{
		Number:    cand.Number,
		CommitID:  cand.Commit.ID,
		TargetRef: targetRef,
		TargetTip: tip,
	}

	changes, lowConfidence, err := p.extractor.Extract(ctx, cand.Commit)
	if err != nil {
		return domain.ConflictPrediction{}, err
	}
	pred.LowConfidence = lowConfidence

	parentID := ""
	if !cand.Commit.IsRoot() {
		parentID = cand.Commit.Parents[0]
	}

	for _, fc := range changes {
		conflict, err := p.predictFile(ctx, parentID, cand.Commit.ID, tip, fc)
		if err != nil {
			if errors.Is(err, domain.ErrContentUnavailable) {
				pred.Status = domain.PredictionUnknown
				pred.Reason = err.Error()
				pred.Files = nil
				pred.FileCount, pred.RegionCount, pred.LineCount = 0, 0, 0
				p.logger.Warn(ctx, "prediction unknown, file unreadable", map[string]interface{}{
					"candidate": cand.Number,
					"commit":    cand.Commit.ShortID(),
					"reason":    err.Error(),
				})
				return pred, nil
			}
			return domain.ConflictPrediction{}, err
		}
		if conflict == nil {
			continue
		}
		pred.Files = append(pred.Files, *conflict)
		pred.FileCount++
		pred.RegionCount += len(conflict.Regions)
		pred.LineCount += conflict.Lines
	}

	pred.Tier = p.classifier.Classify(pred.FileCount, pred.RegionCount, pred.LineCount)

	p.logger.Debug(ctx, "prediction computed", map[string]interface{}{
		"candidate":  cand.Number,
		"commit":     cand.Commit.ShortID(),
		"target_tip": shortID(tip),
		"files":      pred.FileCount,
		"regions":    pred.RegionCount,
		"lines":      pred.LineCount,
		"tier":       pred.Tier.String(),
	})

	return pred, nil
}

// predictFile predicts the conflict for a single file change. It returns nil
// when the change applies cleanly. Content-read failures are wrapped in
// domain.ErrContentUnavailable with the identifiers needed to reproduce the
// lookup.
func (p *ConflictPredictor) predictFile(
	ctx context.Context,
	parentID, candID, tipID string,
	fc domain.FileChange,
) (*domain.FileConflict, error) {
	switch fc.Kind {
	case domain.ChangeAdded:
		return p.predictAdded(ctx, candID, tipID, fc)
	case domain.ChangeDeleted:
		return p.predictDeleted(ctx, parentID, tipID, fc)
	default:
		return p.predictModified(ctx, parentID, tipID, fc)
	}
}

// predictAdded handles files introduced by the candidate. An independent add
// on the target with different content is an add/add conflict; identical
// content means the change is effectively already applied.
func (p *ConflictPredictor) predictAdded(
	ctx context.Context,
	candID, tipID string,
	fc domain.FileChange,
) (*domain.FileConflict, error) {
	tContent, tPresent, err := p.content(ctx, tipID, fc.Path)
	if err != nil {
		return nil, err
	}
	if !tPresent {
		return nil, nil
	}
	cContent, cPresent, err := p.content(ctx, candID, fc.Path)
	if err != nil {
		return nil, err
	}
	if !cPresent {
		return nil, fmt.Errorf("%w: %s at commit %s", domain.ErrContentUnavailable, fc.Path, candID)
	}
	if bytes.Equal(cContent, tContent) {
		return nil, nil
	}
	if fc.Binary {
		return binaryConflict(fc.Path), nil
	}
	lines := countDifferingLines(string(tContent), string(cContent))
	return &domain.FileConflict{
		Path: fc.Path,
		Kind: domain.ConflictAddAdd,
		Regions: []domain.ConflictRegion{
			{Range: domain.LineRange{Start: 1, Lines: lineCount(tContent)}, Lines: lines},
		},
		Lines: lines,
	}, nil
}

// predictDeleted handles files removed by the candidate. If the target
// diverged from the parent the deletion throws away someone else's change,
// which is a modify/delete conflict.
func (p *ConflictPredictor) predictDeleted(
	ctx context.Context,
	parentID, tipID string,
	fc domain.FileChange,
) (*domain.FileConflict, error) {
	path := fc.OldPath
	if path == "" {
		path = fc.Path
	}
	tContent, tPresent, err := p.content(ctx, tipID, path)
	if err != nil {
		return nil, err
	}
	if !tPresent {
		// Already gone on the target.
		return nil, nil
	}
	pContent, pPresent, err := p.content(ctx, parentID, path)
	if err != nil {
		return nil, err
	}
	if !pPresent {
		return nil, fmt.Errorf("%w: %s at commit %s", domain.ErrContentUnavailable, path, parentID)
	}
	if bytes.Equal(pContent, tContent) {
		return nil, nil
	}
	if fc.Binary {
		return binaryConflict(path), nil
	}
	lines := countDifferingLines(string(pContent), string(tContent))
	return &domain.FileConflict{
		Path: path,
		Kind: domain.ConflictModifyDelete,
		Regions: []domain.ConflictRegion{
			{Range: domain.LineRange{Start: 1, Lines: lineCount(pContent)}, Lines: lines},
		},
		Lines: lines,
	}, nil
}

// predictModified handles modified and renamed files: the regions the
// candidate touches are compared against the parent->target divergence.
// Renames are matched by the candidate-side path first, falling back to the
// parent-side path (same-path region comparison only).
func (p *ConflictPredictor) predictModified(
	ctx context.Context,
	parentID, tipID string,
	fc domain.FileChange,
) (*domain.FileConflict, error) {
	oldPath := fc.OldPath
	if oldPath == "" {
		oldPath = fc.Path
	}
	pContent, pPresent, err := p.content(ctx, parentID, oldPath)
	if err != nil {
		return nil, err
	}
	if !pPresent {
		return nil, fmt.Errorf("%w: %s at commit %s", domain.ErrContentUnavailable, oldPath, parentID)
	}

	tContent, tPresent, err := p.content(ctx, tipID, fc.Path)
	if err != nil {
		return nil, err
	}
	if !tPresent && fc.Path != oldPath {
		tContent, tPresent, err = p.content(ctx, tipID, oldPath)
		if err != nil {
			return nil, err
		}
	}
	if !tPresent {
		// Deleted on the target but modified by the candidate.
		return &domain.FileConflict{
			Path: fc.Path,
			Kind: domain.ConflictDeleteModify,
			Regions: []domain.ConflictRegion{
				{Range: domain.LineRange{Start: 1, Lines: lineCount(pContent)}, Lines: touchedLines(fc, pContent)},
			},
			Lines: touchedLines(fc, pContent),
		}, nil
	}

	if bytes.Equal(pContent, tContent) {
		// Target never diverged from the parent; the change applies cleanly.
		return nil, nil
	}
	if fc.Binary {
		return binaryConflict(fc.Path), nil
	}

	spans := diffSpans(string(pContent), string(tContent))
	hunks := fc.Hunks
	if len(hunks) == 0 {
		// Whole-file fallback: the entire parent content counts as touched.
		hunks = []domain.Hunk{{Old: domain.LineRange{Start: 1, Lines: lineCount(pContent)}}}
	}

	var (
		regions []domain.ConflictRegion
		total   int
	)
	for _, span := range spans {
		for _, h := range hunks {
			if !span.rng.Overlaps(h.Old) {
				continue
			}
			lines := span.overlapLines(h.Old)
			regions = append(regions, domain.ConflictRegion{Range: span.rng, Lines: lines})
			total += lines
			break
		}
	}
	if len(regions) == 0 {
		return nil, nil
	}
	return &domain.FileConflict{
		Path:    fc.Path,
		Kind:    domain.ConflictContent,
		Regions: regions,
		Lines:   total,
	}, nil
}

// content wraps the reader call, attaching identifiers to failures. An empty
// commit id means the empty tree, where nothing exists.
func (p *ConflictPredictor) content(ctx context.Context, commitID, path string) ([]byte, bool, error) {
	if commitID == "" {
		return nil, false, nil
	}
	data, present, err := p.reader.FileContent(ctx, commitID, path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s at commit %s: %v", domain.ErrContentUnavailable, path, commitID, err)
	}
	return data, present, nil
}

func binaryConflict(path string) *domain.FileConflict {
	return &domain.FileConflict{
		Path:    path,
		Kind:    domain.ConflictBinary,
		Regions: []domain.ConflictRegion{{Range: domain.LineRange{Start: 1, Lines: 0}}},
	}
}

// changedSpan is a contiguous region, in parent-file line coordinates, where
// the target's content diverges from the parent's. A zero-length range marks
// lines the target inserted at that boundary.
type changedSpan struct {
	rng   domain.LineRange
	lines int
}

// overlapLines estimates how many of the span's differing lines fall inside
// the given hunk range.
func (s changedSpan) overlapLines(h domain.LineRange) int {
	if s.rng.Lines <= 0 {
		// Insertion point: all inserted lines count once the boundary is hit.
		return s.lines
	}
	start := maxInt(s.rng.Start, h.Start)
	end := minInt(s.rng.End(), h.End())
	overlap := end - start + 1
	if overlap >= s.rng.Lines {
		return s.lines
	}
	if overlap < 0 {
		return 0
	}
	// The span's changed-line count is spread across its range; scale the
	// estimate by the covered fraction, at least one line.
	est := s.lines * overlap / s.rng.Lines
	if est < 1 {
		est = 1
	}
	return est
}

// diffSpans computes the parent->target changed regions with a line-granular
// diff. Adjacent delete/insert pairs collapse into a single replacement span.
func diffSpans(parent, target string) []changedSpan {
	if parent == target {
		return nil
	}
	dmp := diffmatchpatch.New()
	p, t, _ := dmp.DiffLinesToChars(parent, target)
	diffs := dmp.DiffMain(p, t, false)

	var spans []changedSpan
	line := 1 // current parent line
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			line += n
		case diffmatchpatch.DiffDelete:
			spans = appendSpan(spans, changedSpan{
				rng:   domain.LineRange{Start: line, Lines: n},
				lines: n,
			})
			line += n
		case diffmatchpatch.DiffInsert:
			spans = appendSpan(spans, changedSpan{
				rng:   domain.LineRange{Start: line, Lines: 0},
				lines: n,
			})
		}
	}
	return spans
}

// appendSpan merges spans that touch so a replacement (delete then insert)
// reads as one region.
func appendSpan(spans []changedSpan, s changedSpan) []changedSpan {
	if len(spans) > 0 {
		last := &spans[len(spans)-1]
		if s.rng.Start <= last.rng.End()+1 {
			end := maxInt(last.rng.End(), s.rng.End())
			if s.rng.Lines > 0 || last.rng.Lines > 0 {
				last.rng.Lines = end - last.rng.Start + 1
			}
			last.lines += s.lines
			return spans
		}
	}
	return append(spans, s)
}

// countDifferingLines counts lines that differ between two texts, used for
// whole-file conflict estimates.
func countDifferingLines(a, b string) int {
	total := 0
	for _, s := range diffSpans(a, b) {
		total += s.lines
	}
	if total == 0 && a != b {
		total = 1
	}
	return total
}

// touchedLines sums the parent-side lines the candidate touches, falling
// back to the whole file when hunk detail is missing.
func touchedLines(fc domain.FileChange, parentContent []byte) int {
	if len(fc.Hunks) == 0 {
		return lineCount(parentContent)
	}
	total := 0
	for _, h := range fc.Hunks {
		if h.Old.Lines > 0 {
			total += h.Old.Lines
		} else {
			total++
		}
	}
	return total
}

func lineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if !strings.HasSuffix(string(content), "\n") {
		n++
	}
	return n
}

// shortID abbreviates a commit id for log fields, tolerating ids shorter
// than the abbreviation length.
func shortID(id string) string {
	if len(id) <= domain.ShortIDLen {
		return id
	}
	return id[:domain.ShortIDLen]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

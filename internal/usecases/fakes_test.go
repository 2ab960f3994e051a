package usecases

import (
	"context"
	"fmt"

	"github.com/relops/pickwise/internal/domain"
)

// mockLogger implements the Logger interface for testing.
type mockLogger struct {
	warnings []string
}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})  {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (m *mockLogger) Warn(_ context.Context, msg string, _ map[string]interface{}) {
	m.warnings = append(m.warnings, msg)
}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// fakeReader implements domain.RepositoryReader over in-memory maps. Diffs
// are keyed "from..to" with the empty-tree side spelled as an empty string.
type fakeReader struct {
	refs    map[string]string
	commits map[string]domain.Commit
	diffs   map[string][]domain.FileChange
	// files maps commit id -> path -> content. A missing path means the
	// file does not exist at that commit.
	files      map[string]map[string][]byte
	history    []domain.Commit
	changeText map[string]string
	// fileErrs forces FileContent failures, keyed "commit:path".
	fileErrs map[string]error
}

func (f *fakeReader) ResolveRef(_ context.Context, name string) (string, error) {
	if id, ok := f.refs[name]; ok {
		return id, nil
	}
	if _, ok := f.commits[name]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrRefNotFound, name)
}

func (f *fakeReader) Commit(_ context.Context, id string) (domain.Commit, error) {
	if c, ok := f.commits[id]; ok {
		return c, nil
	}
	return domain.Commit{}, fmt.Errorf("%w: %s", domain.ErrCommitNotFound, id)
}

func (f *fakeReader) Diff(_ context.Context, fromID, toID string) ([]domain.FileChange, error) {
	if changes, ok := f.diffs[fromID+".."+toID]; ok {
		return changes, nil
	}
	return nil, fmt.Errorf("no diff registered for %s..%s", fromID, toID)
}

func (f *fakeReader) FileContent(_ context.Context, commitID, path string) ([]byte, bool, error) {
	if err, ok := f.fileErrs[commitID+":"+path]; ok {
		return nil, false, err
	}
	tree, ok := f.files[commitID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrCommitNotFound, commitID)
	}
	content, present := tree[path]
	return content, present, nil
}

func (f *fakeReader) WalkHistory(_ context.Context, _ string, maxCount int, fn func(domain.Commit) error) error {
	for i, c := range f.history {
		if maxCount > 0 && i >= maxCount {
			return nil
		}
		if err := fn(c); err != nil {
			if err == domain.ErrStopWalk {
				return nil
			}
			return err
		}
	}
	return nil
}

func (f *fakeReader) ChangeText(_ context.Context, commitID string) (string, error) {
	if text, ok := f.changeText[commitID]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrCommitNotFound, commitID)
}

// fakeApplier implements domain.ApplyDelegate with scripted results.
type fakeApplier struct {
	results map[string]domain.ApplyResult
	err     error
	calls   []string
	aborted bool
}

func (f *fakeApplier) Apply(_ context.Context, commitID, _ string) (domain.ApplyResult, error) {
	f.calls = append(f.calls, commitID)
	if f.err != nil {
		return domain.ApplyResult{}, f.err
	}
	if r, ok := f.results[commitID]; ok {
		return r, nil
	}
	return domain.ApplyResult{Success: true}, nil
}

func (f *fakeApplier) AbortInProgress(_ context.Context) error {
	f.aborted = true
	return nil
}

// fakeMetadata implements domain.MetadataSource.
type fakeMetadata struct {
	meta map[int]domain.CandidateMetadata
	err  error
}

func (f *fakeMetadata) CandidateMetadata(_ context.Context, number int) (domain.CandidateMetadata, error) {
	if f.err != nil {
		return domain.CandidateMetadata{}, f.err
	}
	if m, ok := f.meta[number]; ok {
		return m, nil
	}
	return domain.CandidateMetadata{}, fmt.Errorf("no metadata for #%d", number)
}

// newTestPredictor wires a predictor over the fake reader with default
// thresholds.
func newTestPredictor(reader *fakeReader) *ConflictPredictor {
	log := &mockLogger{}
	return NewConflictPredictor(
		reader,
		NewChangeExtractor(reader, log),
		NewComplexityClassifier(DefaultThresholds()),
		log,
	)
}

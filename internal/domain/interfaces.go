// Package domain defines the core business entities and interfaces for pickwise.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors for repository access, candidate resolution and sessions.
var (
	// ErrRepositoryNotFound indicates the specified path is not a valid Git repository.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrRefNotFound indicates a ref or revision could not be resolved.
	ErrRefNotFound = errors.New("ref not found")

	// ErrCommitNotFound indicates a commit id does not exist in the repository.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrContentUnavailable indicates a file could not be read at a required
	// commit; the affected prediction is unknown, not clean.
	ErrContentUnavailable = errors.New("file content unavailable")

	// ErrUnresolvedCandidate indicates a candidate identifier could not be
	// matched within the trunk search window.
	ErrUnresolvedCandidate = errors.New("candidate not found in trunk history")

	// ErrEmptyBatch indicates no candidates survived resolution.
	ErrEmptyBatch = errors.New("no candidates resolved")

	// ErrSessionFinished indicates a decision was submitted to a session in a
	// terminal phase.
	ErrSessionFinished = errors.New("session already finished")

	// ErrStopWalk stops a history walk early. It is never returned to callers.
	ErrStopWalk = errors.New("stop walk")
)

// UnresolvedCandidateError reports a candidate that could not be matched in
// the trunk search window, carrying the identifiers needed to reproduce the
// lookup manually.
type UnresolvedCandidateError struct {
	Number      int
	RecordedSHA string
	Window      int
}

func (e *UnresolvedCandidateError) Error() string {
	if e.RecordedSHA != "" {
		return fmt.Sprintf("candidate #%d (recorded sha %s) not found in last %d trunk commits", e.Number, e.RecordedSHA, e.Window)
	}
	return fmt.Sprintf("candidate #%d not found in last %d trunk commits", e.Number, e.Window)
}

// Is returns true if the target error is ErrUnresolvedCandidate.
func (e *UnresolvedCandidateError) Is(target error) bool {
	return target == ErrUnresolvedCandidate
}

// RepositoryReader is a read-only accessor over a version-control object
// store. Implementations must never perform writes; every prediction in the
// engine is a pure function of the states this interface exposes.
type RepositoryReader interface {
	// ResolveRef resolves a ref name or revision to a full commit id.
	// Returns ErrRefNotFound when the name cannot be resolved.
	ResolveRef(ctx context.Context, name string) (string, error)

	// Commit returns the commit with the given id, including its parents and
	// full message. Returns ErrCommitNotFound for unknown ids.
	Commit(ctx context.Context, id string) (Commit, error)

	// Diff computes the file-level changes from one commit to another,
	// including hunk line ranges and best-effort rename detection. An empty
	// from id means the empty tree (used for root commits).
	Diff(ctx context.Context, fromID, toID string) ([]FileChange, error)

	// FileContent streams a file's content at a commit. The second return is
	// false when the file does not exist at that commit, which is a valid
	// state, not an error.
	FileContent(ctx context.Context, commitID, path string) ([]byte, bool, error)

	// WalkHistory walks commits reachable from ref, most recent first, up to
	// maxCount, invoking fn per commit. fn may return ErrStopWalk to end the
	// walk early.
	WalkHistory(ctx context.Context, ref string, maxCount int, fn func(Commit) error) error

	// ChangeText returns the raw unified diff a commit introduces relative
	// to its first parent, for inspection display.
	ChangeText(ctx context.Context, commitID string) (string, error)
}

// MetadataSource supplies externally-hosted metadata for a candidate id.
// Implementations typically talk to a code-hosting API.
type MetadataSource interface {
	// CandidateMetadata fetches metadata for one candidate number.
	CandidateMetadata(ctx context.Context, number int) (CandidateMetadata, error)
}

// ApplyDelegate executes the state-mutating apply of a candidate onto the
// target branch. It is invoked only after an explicit proceed decision; the
// engine itself never mutates repository state.
type ApplyDelegate interface {
	// Apply cherry-picks the commit onto the target branch. A conflicting or
	// failed apply is reported in the result, not as an error; errors are
	// reserved for the delegate itself being unable to run.
	Apply(ctx context.Context, commitID, targetRef string) (ApplyResult, error)

	// AbortInProgress aborts a half-applied operation left by a conflicting
	// apply, restoring the working tree.
	AbortInProgress(ctx context.Context) error
}

// StateStore persists batch and session snapshots between runs. The engine
// exposes a serializable view but performs no file I/O itself.
type StateStore interface {
	// Save persists the snapshot, replacing any previous one.
	Save(ctx context.Context, snap Snapshot) error

	// Load reads the persisted snapshot. The second return is false when no
	// snapshot exists.
	Load(ctx context.Context) (Snapshot, bool, error)
}

// Package domain defines the core business entities and interfaces for pickwise.
// This package contains no external dependencies and represents the innermost
// layer of the CLEAN architecture.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSearchWindow is the default number of trunk commits to walk when
// resolving candidate identifiers. A higher value finds older candidates but
// increases resolution time on large histories.
const DefaultSearchWindow = 5000

// ShortIDLen is the abbreviated commit id length used in output and logs.
const ShortIDLen = 8

// Commit is a read-only view of an immutable changeset in the repository's
// history, as supplied by the RepositoryReader.
type Commit struct {
	// ID is the full hex object id of the commit.
	ID string

	// Parents holds the object ids of the commit's parents, first parent first.
	Parents []string

	// Author is the commit author in "Name <email>" form.
	Author string

	// When is the author timestamp.
	When time.Time

	// Message is the full commit message.
	Message string
}

// ShortID returns the abbreviated commit id for display.
func (c Commit) ShortID() string {
	if len(c.ID) <= ShortIDLen {
		return c.ID
	}
	return c.ID[:ShortIDLen]
}

// Title returns the first line of the commit message.
func (c Commit) Title() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return strings.TrimSpace(c.Message[:i])
	}
	return strings.TrimSpace(c.Message)
}

// IsMerge reports whether the commit has more than one parent.
func (c Commit) IsMerge() bool { return len(c.Parents) > 1 }

// IsRoot reports whether the commit has no parents.
func (c Commit) IsRoot() bool { return len(c.Parents) == 0 }

// CandidateMetadata is externally-sourced information about a candidate,
// joined at the indexer boundary. The engine core never depends on it.
type CandidateMetadata struct {
	Number int
	Title  string
	Author string
	Merged bool
}

// Candidate is a changeset proposed for application onto a target branch,
// identified by the external reference number embedded in its trunk commit
// message.
type Candidate struct {
	// Number is the external reference id (e.g. the N of "(#N)").
	Number int

	// Commit is the resolved trunk commit introducing the change.
	Commit Commit

	// TrunkPosition is the candidate's position in trunk order within the
	// search window, counting from the oldest walked commit.
	TrunkPosition int

	// Title, Author and Merged come from the metadata source when one is
	// configured; HasMetadata reports whether the join happened.
	Title       string
	Author      string
	Merged      bool
	HasMetadata bool
}

// DisplayTitle prefers joined metadata and falls back to the commit title.
func (c Candidate) DisplayTitle() string {
	if c.HasMetadata && c.Title != "" {
		return c.Title
	}
	return c.Commit.Title()
}

// OrderedBatch is a sequence of candidates placed in application order,
// ascending by trunk position (oldest first).
type OrderedBatch struct {
	TargetRef string
	Items     []Candidate
}

// Len returns the number of candidates in the batch.
func (b OrderedBatch) Len() int { return len(b.Items) }

// ChangeKind classifies one file's delta within a commit.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeDeleted
	ChangeRenamed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// LineRange is a contiguous 1-based line range. Lines == 0 marks a pure
// insertion point before Start.
type LineRange struct {
	Start int
	Lines int
}

// End returns the last line covered by the range. For an insertion point it
// equals Start.
func (r LineRange) End() int {
	if r.Lines <= 0 {
		return r.Start
	}
	return r.Start + r.Lines - 1
}

// Overlaps reports whether two ranges share at least one line, treating
// insertion points as touching their boundary line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start <= other.End() && other.Start <= r.End()
}

func (r LineRange) String() string {
	if r.Lines <= 1 {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End())
}

// Hunk is one contiguous edit within a file change, in both the parent (Old)
// and candidate (New) coordinate spaces.
type Hunk struct {
	Old LineRange
	New LineRange
}

// FileChange is one file's delta between a candidate commit and its parent.
type FileChange struct {
	// Path is the file path in the candidate commit. For deletions it is the
	// parent-side path.
	Path string

	// OldPath is the parent-side path; it differs from Path for renames.
	OldPath string

	Kind   ChangeKind
	Binary bool

	// Hunks lists the touched line ranges. Empty for binary files.
	Hunks []Hunk
}

// ConflictKind classifies a predicted per-file conflict.
type ConflictKind int

const (
	// ConflictContent is an overlapping-edit conflict within file content.
	ConflictContent ConflictKind = iota
	// ConflictDeleteModify is a file deleted in the target but modified by
	// the candidate.
	ConflictDeleteModify
	// ConflictModifyDelete is a file deleted by the candidate while the
	// target diverged from the parent.
	ConflictModifyDelete
	// ConflictAddAdd is a file added independently on both sides with
	// different content.
	ConflictAddAdd
	// ConflictBinary is a binary file changed on both sides.
	ConflictBinary
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictContent:
		return "content"
	case ConflictDeleteModify:
		return "delete/modify"
	case ConflictModifyDelete:
		return "modify/delete"
	case ConflictAddAdd:
		return "add/add"
	case ConflictBinary:
		return "binary"
	}
	return fmt.Sprintf("ConflictKind(%d)", int(k))
}

// ConflictRegion is one predicted conflicting region within a file, in
// parent-file line coordinates.
type ConflictRegion struct {
	Range LineRange

	// Lines is the estimated count of conflicting lines in the region.
	Lines int
}

// FileConflict is the predicted conflict for one file when applying a
// candidate to a target state.
type FileConflict struct {
	Path    string
	Kind    ConflictKind
	Regions []ConflictRegion

	// Lines is the estimated total conflicting line count across regions.
	Lines int
}

// Tier is the ordinal complexity classification of a prediction.
// Tiers are totally ordered: TierClean < TierSimple < TierModerate < TierComplex.
type Tier int

const (
	TierClean Tier = iota
	TierSimple
	TierModerate
	TierComplex
)

func (t Tier) String() string {
	switch t {
	case TierClean:
		return "clean"
	case TierSimple:
		return "simple"
	case TierModerate:
		return "moderate"
	case TierComplex:
		return "complex"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// PredictionStatus distinguishes a usable prediction from one that could not
// be computed. An unknown prediction is never reported as clean.
type PredictionStatus int

const (
	PredictionOK PredictionStatus = iota
	PredictionUnknown
)

// ConflictPrediction is the aggregate prediction for one candidate against
// one target state. It is a pure function of three immutable commit states
// and never the result of mutating repository state.
type ConflictPrediction struct {
	Number    int
	CommitID  string
	TargetRef string

	// TargetTip is the resolved target commit the prediction was computed
	// against. A prediction is stale once the tip moves.
	TargetTip string

	Status PredictionStatus

	// Reason carries the identifiers of whatever made the prediction
	// unknown (path, commit id).
	Reason string

	// LowConfidence marks predictions derived from a whole-file fallback
	// (root or merge candidate commits).
	LowConfidence bool

	Files []FileConflict

	// FileCount, RegionCount and LineCount aggregate the per-file results:
	// files with at least one conflicting region, total regions, total
	// estimated conflicting lines.
	FileCount   int
	RegionCount int
	LineCount   int

	Tier Tier
}

// HasConflicts reports whether any file is predicted to conflict.
func (p ConflictPrediction) HasConflicts() bool {
	return p.Status == PredictionOK && p.FileCount > 0
}

// ApplyResult is the outcome reported by the external apply delegate.
type ApplyResult struct {
	Success         bool
	Conflict        bool
	ConflictedFiles []string
	Message         string
}

// Decision is a per-candidate choice made at AwaitingDecision.
type Decision int

const (
	DecideProceed Decision = iota
	DecideInspect
	DecideSkip
	DecideAbort
)

func (d Decision) String() string {
	switch d {
	case DecideProceed:
		return "proceed"
	case DecideInspect:
		return "inspect"
	case DecideSkip:
		return "skip"
	case DecideAbort:
		return "abort"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// SessionPhase is the state-machine phase of an interactive session.
type SessionPhase int

const (
	PhaseReady SessionPhase = iota
	PhaseAwaitingDecision
	PhaseCompleted
	PhaseAborted

	// PhaseHalted means the apply delegate reported a conflict or failure;
	// prior decisions are preserved and the session does not auto-retry.
	PhaseHalted
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseAwaitingDecision:
		return "awaiting-decision"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	case PhaseHalted:
		return "halted"
	}
	return fmt.Sprintf("SessionPhase(%d)", int(p))
}

// SessionState is the progress through an OrderedBatch during an interactive
// run. Position only advances; applied and skipped candidates are never
// revisited within the same session.
type SessionState struct {
	Position int
	Applied  []int
	Skipped  []int
	Phase    SessionPhase
}

// Progress summarizes a session for callers.
type Progress struct {
	Applied   int
	Skipped   int
	Remaining int
}

// Snapshot is the serializable view of a batch plus session state handed to
// the external state store between runs.
type Snapshot struct {
	TargetRef string
	SavedAt   time.Time
	Batch     OrderedBatch
	Session   SessionState
}

package usecases

import (
	"context"
	"fmt"

	"github.com/relops/pickwise/internal/domain"
)

// SessionController drives a sequential apply/skip/abort decision loop over
// an ordered, pre-resolved batch. It delegates the actual apply to the
// external ApplyDelegate and never mutates repository state itself.
//
// Predictions are computed lazily when a candidate is presented, never at
// batch-build time, because each successful apply moves the target tip and
// stales every not-yet-visited prediction.
type SessionController struct {
	batch     domain.OrderedBatch
	predictor *ConflictPredictor
	reader    domain.RepositoryReader
	apply     domain.ApplyDelegate
	logger    Logger

	state      domain.SessionState
	current    *domain.ConflictPrediction
	lastResult *domain.ApplyResult
}

// NewSessionController creates a session over the given batch, positioned
// before its first candidate.
func NewSessionController(
	batch domain.OrderedBatch,
	predictor *ConflictPredictor,
	reader domain.RepositoryReader,
	apply domain.ApplyDelegate,
	log Logger,
) *SessionController {
	phase := domain.PhaseReady
	if batch.Len() == 0 {
		phase = domain.PhaseCompleted
	}
	return &SessionController{
		batch:     batch,
		predictor: predictor,
		reader:    reader,
		apply:     apply,
		logger:    log,
		state:     domain.SessionState{Phase: phase},
	}
}

// ResumeSessionController creates a session over the given batch positioned
// at a previously persisted state. A state persisted mid-decision resumes at
// Ready for the same candidate; the prediction is recomputed rather than
// trusted from the snapshot.
func ResumeSessionController(
	batch domain.OrderedBatch,
	state domain.SessionState,
	predictor *ConflictPredictor,
	reader domain.RepositoryReader,
	apply domain.ApplyDelegate,
	log Logger,
) *SessionController {
	s := NewSessionController(batch, predictor, reader, apply, log)
	if state.Position > batch.Len() {
		state.Position = batch.Len()
	}
	s.state = domain.SessionState{
		Position: state.Position,
		Applied:  append([]int(nil), state.Applied...),
		Skipped:  append([]int(nil), state.Skipped...),
		Phase:    state.Phase,
	}
	if s.state.Phase == domain.PhaseAwaitingDecision || s.state.Phase == domain.PhaseHalted {
		s.state.Phase = domain.PhaseReady
	}
	if s.state.Position >= batch.Len() && s.state.Phase == domain.PhaseReady {
		s.state.Phase = domain.PhaseCompleted
	}
	return s
}

// Phase returns the session's current state-machine phase.
func (s *SessionController) Phase() domain.SessionPhase { return s.state.Phase }

// State returns a copy of the session state for persistence.
func (s *SessionController) State() domain.SessionState {
	st := s.state
	st.Applied = append([]int(nil), s.state.Applied...)
	st.Skipped = append([]int(nil), s.state.Skipped...)
	return st
}

// Batch returns the batch the session runs over.
func (s *SessionController) Batch() domain.OrderedBatch { return s.batch }

// Progress reports counts of applied, skipped and remaining candidates.
func (s *SessionController) Progress() domain.Progress {
	return domain.Progress{
		Applied:   len(s.state.Applied),
		Skipped:   len(s.state.Skipped),
		Remaining: s.batch.Len() - s.state.Position,
	}
}

// LastApplyResult returns the delegate result of the most recent proceed
// decision, or nil when none has happened yet.
func (s *SessionController) LastApplyResult() *domain.ApplyResult { return s.lastResult }

// Current presents the candidate at the session position together with a
// prediction computed against the current target tip, moving the session to
// AwaitingDecision. Calling it again without an intervening decision returns
// the same prediction; the target tip cannot have moved without an apply.
func (s *SessionController) Current(ctx context.Context) (domain.Candidate, domain.ConflictPrediction, error) {
	switch s.state.Phase {
	case domain.PhaseReady:
		cand := s.batch.Items[s.state.Position]
		pred, err := s.predictor.Predict(ctx, cand, s.batch.TargetRef)
		if err != nil {
			return domain.Candidate{}, domain.ConflictPrediction{}, err
		}
		s.current = &pred
		s.state.Phase = domain.PhaseAwaitingDecision
		return cand, pred, nil
	case domain.PhaseAwaitingDecision:
		return s.batch.Items[s.state.Position], *s.current, nil
	default:
		return domain.Candidate{}, domain.ConflictPrediction{}, fmt.Errorf("%w: phase %s", domain.ErrSessionFinished, s.state.Phase)
	}
}

// InspectText returns the raw change content of the current candidate for
// display. It never alters session state; the session re-presents the same
// candidate afterwards.
func (s *SessionController) InspectText(ctx context.Context) (string, error) {
	if s.state.Phase != domain.PhaseAwaitingDecision {
		return "", fmt.Errorf("%w: phase %s", domain.ErrSessionFinished, s.state.Phase)
	}
	cand := s.batch.Items[s.state.Position]
	text, err := s.reader.ChangeText(ctx, cand.Commit.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load change text for candidate #%d (%s): %w",
			cand.Number, cand.Commit.ShortID(), err)
	}
	return text, nil
}

// Decide submits a decision for the candidate at AwaitingDecision.
//
// Proceed delegates the apply; on success the session advances, on a
// reported conflict or failure it halts at the candidate with all prior
// decisions preserved (no auto-retry), and the delegate result is returned.
// Skip records the candidate and advances. Abort is terminal and leaves all
// not-yet-applied candidates untouched. Inspect leaves state unchanged (use
// InspectText for the content).
func (s *SessionController) Decide(ctx context.Context, d domain.Decision) (domain.ApplyResult, error) {
	if s.state.Phase != domain.PhaseAwaitingDecision {
		return domain.ApplyResult{}, fmt.Errorf("%w: phase %s", domain.ErrSessionFinished, s.state.Phase)
	}
	cand := s.batch.Items[s.state.Position]

	switch d {
	case domain.DecideInspect:
		return domain.ApplyResult{}, nil

	case domain.DecideSkip:
		s.state.Skipped = append(s.state.Skipped, cand.Number)
		s.logger.Info(ctx, "candidate skipped", map[string]interface{}{
			"candidate": cand.Number,
			"commit":    cand.Commit.ShortID(),
		})
		s.advance()
		return domain.ApplyResult{}, nil

	case domain.DecideAbort:
		s.state.Phase = domain.PhaseAborted
		s.logger.Info(ctx, "session aborted", map[string]interface{}{
			"position": s.state.Position,
			"applied":  len(s.state.Applied),
			"skipped":  len(s.state.Skipped),
		})
		return domain.ApplyResult{}, nil

	case domain.DecideProceed:
		return s.proceed(ctx, cand)

	default:
		return domain.ApplyResult{}, fmt.Errorf("unknown decision %v", d)
	}
}

func (s *SessionController) proceed(ctx context.Context, cand domain.Candidate) (domain.ApplyResult, error) {
	result, err := s.apply.Apply(ctx, cand.Commit.ID, s.batch.TargetRef)
	if err != nil {
		s.state.Phase = domain.PhaseHalted
		return domain.ApplyResult{}, fmt.Errorf("apply delegate failed for candidate #%d (%s): %w",
			cand.Number, cand.Commit.ShortID(), err)
	}
	s.lastResult = &result
	s.reportAccuracy(ctx, cand, result)

	if !result.Success {
		s.state.Phase = domain.PhaseHalted
		s.logger.Warn(ctx, "apply failed, session halted", map[string]interface{}{
			"candidate":        cand.Number,
			"commit":           cand.Commit.ShortID(),
			"conflict":         result.Conflict,
			"conflicted_files": result.ConflictedFiles,
			"message":          result.Message,
		})
		return result, nil
	}

	s.state.Applied = append(s.state.Applied, cand.Number)
	s.logger.Info(ctx, "candidate applied", map[string]interface{}{
		"candidate": cand.Number,
		"commit":    cand.Commit.ShortID(),
	})
	s.advance()
	return result, nil
}

// reportAccuracy logs prediction/outcome mismatches. A clean prediction that
// conflicts in practice (or the reverse) is expected approximation error,
// never an error condition, but it must not be silently swallowed.
func (s *SessionController) reportAccuracy(ctx context.Context, cand domain.Candidate, result domain.ApplyResult) {
	if s.current == nil || s.current.Status != domain.PredictionOK {
		return
	}
	predicted := s.current.HasConflicts()
	actual := result.Conflict
	if predicted == actual {
		return
	}
	s.logger.Warn(ctx, "prediction accuracy event", map[string]interface{}{
		"candidate":          cand.Number,
		"commit":             cand.Commit.ShortID(),
		"predicted_conflict": predicted,
		"predicted_tier":     s.current.Tier.String(),
		"actual_conflict":    actual,
	})
}

// advance moves forward one position. The position never moves backwards and
// decided candidates are never revisited.
func (s *SessionController) advance() {
	s.current = nil
	s.state.Position++
	if s.state.Position >= s.batch.Len() {
		s.state.Phase = domain.PhaseCompleted
	} else {
		s.state.Phase = domain.PhaseReady
	}
}

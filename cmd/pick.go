package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relops/pickwise/internal/adapters/output"
	"github.com/relops/pickwise/internal/domain"
	"github.com/relops/pickwise/internal/usecases"
)

// pick flags.
var (
	pickPRs       []string
	pickTrunk     string
	pickState     string
	pickAutoClean bool
	pickMaxPicks  int
)

func newPickCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick <target-branch>",
		Short: "Interactively cherry-pick candidates onto the target branch",
		Long: `pick walks an ordered batch candidate by candidate. For each one it
predicts conflicts against the current target tip, then asks whether to apply
(git cherry-pick -x), show the diff, skip, or abort. A failed apply halts the
session with the conflicted files listed; resolve or abort the cherry-pick
before resuming.

With --state, progress is saved after every decision and a later run with the
same --state file resumes where the session stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPick(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringSliceVarP(&pickPRs, "prs", "p", nil,
		"PR numbers to pick (repeatable or comma-separated; \"123\" or \"123:sha\")")
	cmd.Flags().StringVarP(&pickTrunk, "trunk", "t", "main",
		"Trunk ref the candidates were merged to")
	cmd.Flags().StringVar(&pickState, "state", "",
		"Snapshot file to persist and resume session progress (YAML)")
	cmd.Flags().BoolVar(&pickAutoClean, "auto-clean", false,
		"Apply candidates predicted clean without prompting")
	cmd.Flags().IntVar(&pickMaxPicks, "max-picks", 0,
		"Stop after this many successful applies (0 = unlimited)")

	return cmd
}

func runPick(ctx context.Context, deps *Dependencies, targetRef string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := setup(ctx, deps)
	if err != nil {
		return err
	}

	if deps.ApplierFactory == nil {
		return errors.New("apply delegate not configured")
	}
	if deps.Prompter == nil && !pickAutoClean {
		return errors.New("prompter not configured")
	}

	session, err := buildSession(ctx, deps, rt, targetRef)
	if err != nil {
		return err
	}

	writer := output.NewWriterWithOutput(rt.stdout)
	return runSessionLoop(ctx, deps, rt, session, writer)
}

// buildSession either resumes a persisted session or builds a fresh one from
// --prs. When resuming, --prs must be empty; the snapshot defines the batch.
func buildSession(
	ctx context.Context,
	deps *Dependencies,
	rt *runtime,
	targetRef string,
) (*usecases.SessionController, error) {
	applier := deps.ApplierFactory(repoPath, rt.log)
	predictor := newPredictor(rt)

	if pickState != "" && len(pickPRs) == 0 && deps.StoreFactory != nil {
		snap, ok, err := deps.StoreFactory(pickState).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if ok {
			if snap.TargetRef != targetRef {
				return nil, fmt.Errorf("snapshot targets %q, not %q", snap.TargetRef, targetRef)
			}
			rt.log.Info(ctx, "resuming session from snapshot", map[string]interface{}{
				"path":     pickState,
				"position": snap.Session.Position,
				"applied":  len(snap.Session.Applied),
			})
			return usecases.ResumeSessionController(
				snap.Batch, snap.Session, predictor, rt.reader, applier, rt.log), nil
		}
	}

	batch, warnings, err := buildBatch(ctx, deps, rt, pickTrunk, targetRef, pickPRs)
	if err != nil {
		return nil, err
	}
	output.NewWriterWithOutput(rt.stderr).WriteWarnings(warnings)

	return usecases.NewSessionController(batch, predictor, rt.reader, applier, rt.log), nil
}

func runSessionLoop(
	ctx context.Context,
	deps *Dependencies,
	rt *runtime,
	session *usecases.SessionController,
	writer *output.Writer,
) error {
	applied := 0
	batch := session.Batch()

	for session.Phase() == domain.PhaseReady {
		if pickMaxPicks > 0 && applied >= pickMaxPicks {
			rt.log.Info(ctx, "pick limit reached", map[string]interface{}{
				"max_picks": pickMaxPicks,
			})
			break
		}

		cand, pred, err := session.Current(ctx)
		if err != nil {
			return err
		}

		writer.WriteCandidateHeader(session.State().Position, batch.Len(), cand)
		writer.WritePrediction(pred)

		decision, err := nextDecision(deps, pred)
		if err != nil {
			return err
		}

		// Inspect stays on the same candidate until another decision is made.
		for decision == domain.DecideInspect {
			text, err := session.InspectText(ctx)
			if err != nil {
				rt.log.Error(ctx, "failed to load diff", err, map[string]interface{}{
					"candidate": cand.Number,
				})
			} else {
				writer.WriteDiff(text)
			}
			decision, err = nextDecision(deps, pred)
			if err != nil {
				return err
			}
		}

		result, err := session.Decide(ctx, decision)
		if err != nil {
			return err
		}
		if decision == domain.DecideProceed {
			writer.WriteApplyResult(result)
			if result.Success {
				applied++
			}
		}

		if err := saveSession(ctx, deps, session); err != nil {
			return err
		}
	}

	writer.WriteSessionSummary(session.Phase(), session.Progress())
	if session.Phase() == domain.PhaseHalted {
		return errors.New("session halted on a failed apply; resolve or abort the cherry-pick")
	}
	return nil
}

// nextDecision chooses automatically under --auto-clean for confidently clean
// predictions, otherwise prompts.
func nextDecision(deps *Dependencies, pred domain.ConflictPrediction) (domain.Decision, error) {
	autoClean := pickAutoClean &&
		pred.Status == domain.PredictionOK &&
		!pred.HasConflicts() &&
		!pred.LowConfidence
	if autoClean {
		return domain.DecideProceed, nil
	}
	if deps.Prompter == nil {
		return domain.DecideSkip, nil
	}
	return deps.Prompter.AskDecision("What would you like to do?")
}

func saveSession(ctx context.Context, deps *Dependencies, session *usecases.SessionController) error {
	if pickState == "" || deps.StoreFactory == nil {
		return nil
	}
	snap := domain.Snapshot{
		TargetRef: session.Batch().TargetRef,
		SavedAt:   time.Now().UTC(),
		Batch:     session.Batch(),
		Session:   session.State(),
	}
	if err := deps.StoreFactory(pickState).Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
